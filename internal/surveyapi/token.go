package surveyapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/clock"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const Issuer = "opineeo"

// responseClaims bind a response token to the survey it was issued for.
type responseClaims struct {
	SurveyID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies response tokens. A response token is handed
// out with every survey fetch and must come back with the submission.
type TokenIssuer struct {
	logger *zap.Logger
	tracer trace.Tracer
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenIssuer(logger *zap.Logger, secret string, ttl time.Duration, c clock.Clock) *TokenIssuer {
	if c == nil {
		c = clock.Real{}
	}
	return &TokenIssuer{
		logger: logger,
		tracer: otel.Tracer("surveyapi/token"),
		secret: []byte(secret),
		ttl:    ttl,
		clock:  c,
	}
}

func (t *TokenIssuer) Issue(ctx context.Context, surveyID string) (string, error) {
	traceCtx, span := t.tracer.Start(ctx, "Issue")
	defer span.End()
	logger := logutil.WithContext(traceCtx, t.logger)

	now := t.clock.Now()
	id := uuid.New()
	claims := &responseClaims{
		SurveyID: surveyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   surveyID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        id.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		logger.Error("failed to sign response token", zap.Error(err), zap.String("survey_id", surveyID))
		span.RecordError(err)
		return "", err
	}

	logger.Debug("Issued response token", zap.String("survey_id", surveyID), zap.String("token_id", id.String()))
	return signed, nil
}

// Verify checks the signature and lifetime of a response token and that it
// was issued for surveyID. It returns the token id.
func (t *TokenIssuer) Verify(ctx context.Context, tokenString, surveyID string) (string, error) {
	traceCtx, span := t.tracer.Start(ctx, "Verify")
	defer span.End()
	logger := logutil.WithContext(traceCtx, t.logger)

	claims := &responseClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			logger.Warn("Failed to parse response token due to malformed structure", zap.String("error", err.Error()))
		case errors.Is(err, jwt.ErrSignatureInvalid):
			logger.Warn("Failed to parse response token due to invalid signature", zap.String("error", err.Error()))
		case errors.Is(err, jwt.ErrTokenExpired):
			logger.Warn("Failed to parse response token due to expired timestamp", zap.String("error", err.Error()))
		default:
			logger.Warn("Failed to parse response token", zap.Error(err))
		}
		return "", fmt.Errorf("%w: %v", internal.ErrInvalidResponseToken, err)
	}

	if claims.SurveyID != surveyID {
		logger.Warn("Response token survey mismatch", zap.String("token_survey_id", claims.SurveyID), zap.String("survey_id", surveyID))
		return "", internal.ErrSurveyIDMismatch
	}

	return claims.ID, nil
}
