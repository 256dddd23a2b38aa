package surveyapi

import (
	"context"
	"fmt"
	"io"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/clock"
	"opineeo/survey-widget/internal/survey"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SurveyStore interface {
	Get(id string) (survey.Survey, bool)
}

type ResponseTokens interface {
	Issue(ctx context.Context, surveyID string) (string, error)
	Verify(ctx context.Context, token, surveyID string) (string, error)
}

type Service struct {
	logger *zap.Logger
	tracer trace.Tracer

	surveys  SurveyStore
	tokens   ResponseTokens
	store    Store
	notifier Notifier
	clock    clock.Clock
}

func NewService(logger *zap.Logger, surveys SurveyStore, tokens ResponseTokens, store Store, notifier Notifier, c clock.Clock) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Service{
		logger:   logger,
		tracer:   otel.Tracer("surveyapi/service"),
		surveys:  surveys,
		tokens:   tokens,
		store:    store,
		notifier: notifier,
		clock:    c,
	}
}

// GetSurvey returns the survey with a freshly issued response token.
func (s *Service) GetSurvey(ctx context.Context, surveyID string) (survey.Survey, error) {
	traceCtx, span := s.tracer.Start(ctx, "GetSurvey")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)
	span.SetAttributes(attribute.String("survey_id", surveyID))

	if surveyID == "" {
		return survey.Survey{}, internal.ErrMissingSurveyID
	}

	def, ok := s.surveys.Get(surveyID)
	if !ok {
		logger.Debug("Survey not found", zap.String("survey_id", surveyID))
		return survey.Survey{}, internal.ErrSurveyNotFound
	}

	token, err := s.tokens.Issue(traceCtx, surveyID)
	if err != nil {
		span.RecordError(err)
		return survey.Survey{}, fmt.Errorf("%w: %v", internal.ErrInternalServerError, err)
	}

	def.ResponseToken = token
	return def, nil
}

// Submit checks a payload against its survey and stores it. The response
// token can be used once. Failing to publish the submission event does not
// fail the submission.
func (s *Service) Submit(ctx context.Context, payload survey.Payload) (Submission, error) {
	traceCtx, span := s.tracer.Start(ctx, "Submit")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)
	span.SetAttributes(attribute.String("survey_id", payload.SurveyID))

	if payload.SurveyID == "" {
		return Submission{}, internal.ErrMissingSurveyID
	}

	def, ok := s.surveys.Get(payload.SurveyID)
	if !ok {
		return Submission{}, internal.ErrSurveyNotFound
	}

	tokenID, err := s.tokens.Verify(traceCtx, payload.ResponseToken, payload.SurveyID)
	if err != nil {
		span.RecordError(err)
		return Submission{}, err
	}

	err = CheckEntries(def, payload.Responses)
	if err != nil {
		logger.Info("Rejected submission", zap.String("survey_id", payload.SurveyID), zap.Error(err))
		span.RecordError(err)
		return Submission{}, err
	}

	submission := Submission{
		ID:          uuid.New(),
		TokenID:     tokenID,
		SurveyID:    payload.SurveyID,
		UserID:      payload.UserID,
		ExtraInfo:   payload.ExtraInfo,
		Responses:   payload.Responses,
		SubmittedAt: s.clock.Now(),
	}

	err = s.store.Save(traceCtx, submission)
	if err != nil {
		span.RecordError(err)
		return Submission{}, err
	}

	err = s.notifier.Submitted(traceCtx, submission)
	if err != nil {
		logger.Warn("Submission stored but event was not published", zap.String("submission_id", submission.ID.String()), zap.Error(err))
	}

	logger.Info("Stored submission", zap.String("survey_id", submission.SurveyID), zap.String("submission_id", submission.ID.String()), zap.Int("responses", len(submission.Responses)))
	return submission, nil
}

// Export writes every submission of a survey as an XLSX workbook.
func (s *Service) Export(ctx context.Context, surveyID string, w io.Writer) error {
	traceCtx, span := s.tracer.Start(ctx, "Export")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	if surveyID == "" {
		return internal.ErrMissingSurveyID
	}

	def, ok := s.surveys.Get(surveyID)
	if !ok {
		return internal.ErrSurveyNotFound
	}

	submissions, err := s.store.List(traceCtx, surveyID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	err = WriteXLSX(w, def, submissions)
	if err != nil {
		logger.Error("Failed to export submissions", zap.String("survey_id", surveyID), zap.Error(err))
		span.RecordError(err)
		return err
	}
	return nil
}

// CheckEntries collects every problem with the submitted entries: unknown or
// repeated questions, unknown options, ratings out of range and required
// questions left unanswered.
func CheckEntries(def survey.Survey, entries []survey.Entry) error {
	var invalid internal.ErrSubmissionInvalid
	report := func(questionID, message string) {
		invalid.Problems = append(invalid.Problems, struct {
			QuestionID string
			Message    string
		}{QuestionID: questionID, Message: message})
	}

	answered := make(map[string]bool, len(entries))
	for _, e := range entries {
		q, ok := def.Question(e.QuestionID)
		if !ok {
			report(e.QuestionID, internal.ErrQuestionNotFound.Error())
			continue
		}
		if answered[e.QuestionID] {
			report(e.QuestionID, "question answered more than once")
			continue
		}
		answered[e.QuestionID] = true

		if e.QuestionFormat != "" && e.QuestionFormat != q.Format {
			report(e.QuestionID, fmt.Sprintf("format %s does not match %s", e.QuestionFormat, q.Format))
			continue
		}

		switch q.Format {
		case survey.FormatSingleChoice:
			if _, ok := q.Option(e.OptionID); !ok {
				report(e.QuestionID, internal.ErrOptionNotFound.Error())
			}
		case survey.FormatMultipleChoice:
			for _, a := range e.Answers {
				if _, ok := q.Option(a.OptionID); !ok {
					report(e.QuestionID, internal.ErrOptionNotFound.Error())
					break
				}
			}
		case survey.FormatStarRating:
			if e.NumberValue == nil || *e.NumberValue < survey.MinStars || *e.NumberValue > survey.MaxStars {
				report(e.QuestionID, internal.ErrRatingOutOfRange.Error())
			}
		}
	}

	for _, q := range def.Questions {
		if q.Required && q.Format != survey.FormatStatement && !answered[q.ID] {
			report(q.ID, internal.ErrQuestionRequired.Error())
		}
	}

	if len(invalid.Problems) > 0 {
		return invalid
	}
	return nil
}
