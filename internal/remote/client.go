package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIBase = "https://app.opineeo.com/api/survey/v0"

	MessageFetchFailed   = "Failed to fetch survey data"
	MessageInvalidSurvey = "Invalid survey data received"

	maxErrorBody = 64 << 10
)

// FetchError is any failure to obtain a survey definition. Its Error() is
// the message shown to the user.
type FetchError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e FetchError) Error() string {
	return e.Message
}

func (e FetchError) Unwrap() error {
	return e.Err
}

type SubmitError struct {
	StatusCode int
	Message    string
}

func (e SubmitError) Error() string {
	return fmt.Sprintf("submit survey response: status %d: %s", e.StatusCode, e.Message)
}

type fetchResponse struct {
	Success bool           `json:"success"`
	Data    *survey.Survey `json:"data"`
	Error   string         `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	logger     *zap.Logger
	tracer     trace.Tracer
	validator  *validator.Validate
	apiBase    string
	httpClient *http.Client

	maxTries        uint
	initialInterval time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.httpClient = c }
}

// WithRetry sets how often a submission is attempted on network errors and
// 5xx responses.
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(client *Client) {
		client.maxTries = maxTries
		client.initialInterval = initialInterval
	}
}

func NewClient(logger *zap.Logger, validator *validator.Validate, apiBase string, opts ...Option) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	c := &Client{
		logger:          logger,
		tracer:          otel.Tracer("remote/client"),
		validator:       validator,
		apiBase:         apiBase,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		maxTries:        3,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) APIBase() string {
	return c.apiBase
}

// FetchSurvey loads a survey definition. The returned survey carries the
// server-issued response token, branding flag and custom style.
func (c *Client) FetchSurvey(ctx context.Context, token, surveyID string) (survey.Survey, error) {
	traceCtx, span := c.tracer.Start(ctx, "FetchSurvey")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)
	span.SetAttributes(attribute.String("survey_id", surveyID))

	endpoint := c.apiBase + "?surveyId=" + url.QueryEscape(surveyID)
	req, err := http.NewRequestWithContext(traceCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		return survey.Survey{}, FetchError{Message: MessageFetchFailed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.authorized(token).Do(req)
	if err != nil {
		logger.Warn("Survey fetch request failed", zap.String("survey_id", surveyID), zap.Error(err))
		span.RecordError(err)
		return survey.Survey{}, FetchError{Message: MessageFetchFailed, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := MessageFetchFailed
		var body errorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body) == nil && body.Error != "" {
			message = body.Error
		}
		err = FetchError{StatusCode: resp.StatusCode, Message: message, Err: statusError(resp.StatusCode)}
		span.RecordError(err)
		return survey.Survey{}, err
	}

	var body fetchResponse
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		span.RecordError(err)
		return survey.Survey{}, FetchError{StatusCode: resp.StatusCode, Message: MessageInvalidSurvey, Err: err}
	}
	if !body.Success || body.Data == nil {
		message := MessageInvalidSurvey
		if body.Error != "" {
			message = body.Error
		}
		return survey.Survey{}, FetchError{StatusCode: resp.StatusCode, Message: message, Err: internal.ErrSurveyDefinition}
	}

	if c.validator != nil {
		err = survey.ValidateStructure(c.validator, *body.Data)
		if err != nil {
			logger.Warn("Fetched survey failed validation", zap.String("survey_id", surveyID), zap.Error(err))
			span.RecordError(err)
			return survey.Survey{}, FetchError{StatusCode: resp.StatusCode, Message: MessageInvalidSurvey, Err: err}
		}
	}

	return *body.Data, nil
}

// Submit posts a completed payload. Network errors and 5xx responses are
// retried with exponential backoff; other non-2xx responses fail at once.
func (c *Client) Submit(ctx context.Context, token string, payload survey.Payload) error {
	traceCtx, span := c.tracer.Start(ctx, "Submit")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)
	span.SetAttributes(attribute.String("survey_id", payload.SurveyID))

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal survey payload: %w", err)
	}

	httpClient := c.authorized(token)
	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		req, err := http.NewRequestWithContext(traceCtx, http.MethodPost, c.apiBase, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			logger.Warn("Survey submission attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return struct{}{}, nil
		}

		var errBody errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&errBody)
		submitErr := SubmitError{StatusCode: resp.StatusCode, Message: errBody.Error}
		if resp.StatusCode >= 500 {
			logger.Warn("Survey submission attempt failed", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			return struct{}{}, submitErr
		}
		return struct{}{}, backoff.Permanent(submitErr)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval

	_, err = backoff.Retry(traceCtx, operation, backoff.WithBackOff(policy), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger.Debug("Survey response submitted", zap.String("survey_id", payload.SurveyID), zap.Int("attempts", attempt))
	return nil
}

func (c *Client) authorized(token string) *http.Client {
	return &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return internal.ErrUnauthorizedError
	case http.StatusNotFound:
		return internal.ErrSurveyNotFound
	}
	return errors.New(http.StatusText(code))
}
