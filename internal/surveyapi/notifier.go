package surveyapi

import (
	"context"
	"encoding/json"
	"time"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const SubmittedSubject = "opineeo.response.submitted"

// SubmittedEvent is published after a submission has been stored.
type SubmittedEvent struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	SurveyID     string    `json:"surveyId"`
	UserID       string    `json:"userId,omitempty"`
	Answered     int       `json:"answered"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type Notifier interface {
	Submitted(ctx context.Context, s Submission) error
}

type NopNotifier struct{}

func (NopNotifier) Submitted(context.Context, Submission) error { return nil }

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type NATSNotifier struct {
	logger    *zap.Logger
	tracer    trace.Tracer
	publisher Publisher
	subject   string
}

func NewNATSNotifier(logger *zap.Logger, publisher Publisher) *NATSNotifier {
	return &NATSNotifier{
		logger:    logger,
		tracer:    otel.Tracer("surveyapi/notifier"),
		publisher: publisher,
		subject:   SubmittedSubject,
	}
}

func (n *NATSNotifier) Submitted(ctx context.Context, s Submission) error {
	traceCtx, span := n.tracer.Start(ctx, "Submitted")
	defer span.End()
	logger := logutil.WithContext(traceCtx, n.logger)

	data, err := json.Marshal(SubmittedEvent{
		SubmissionID: s.ID,
		SurveyID:     s.SurveyID,
		UserID:       s.UserID,
		Answered:     len(s.Responses),
		SubmittedAt:  s.SubmittedAt,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := n.publisher.Publish(n.subject, data); err != nil {
		logger.Error("Failed to publish submission event", zap.String("subject", n.subject), zap.Error(err))
		span.RecordError(err)
		return err
	}

	logger.Debug("Published submission event", zap.String("subject", n.subject), zap.String("submission_id", s.ID.String()))
	return nil
}

// ConnectNATS opens a connection that logs asynchronous errors instead of
// dropping them.
func ConnectNATS(logger *zap.Logger, url string, drainTimeout time.Duration) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("opineeo"),
		nats.DrainTimeout(drainTimeout),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				logger.Error("Async NATS error", zap.String("subject", s.Subject), zap.Error(err))
				return
			}
			logger.Error("Async NATS error outside subscription", zap.Error(err))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
}
