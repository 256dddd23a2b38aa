package surveyapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SurveyResponse and SubmitResponse are the envelopes the widget reads.
type SurveyResponse struct {
	Success bool          `json:"success"`
	Data    survey.Survey `json:"data"`
}

type SubmitResponse struct {
	Success bool          `json:"success"`
	Data    SubmitReceipt `json:"data"`
}

type SubmitReceipt struct {
	ID       string `json:"id"`
	SurveyID string `json:"surveyId"`
}

type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type Operator interface {
	GetSurvey(ctx context.Context, surveyID string) (survey.Survey, error)
	Submit(ctx context.Context, payload survey.Payload) (Submission, error)
	Export(ctx context.Context, surveyID string, w io.Writer) error
}

type Handler struct {
	logger        *zap.Logger
	validator     *validator.Validate
	problemWriter *problem.HttpWriter
	operator      Operator
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, validator *validator.Validate, problemWriter *problem.HttpWriter, operator Operator) *Handler {
	return &Handler{
		logger:        logger,
		validator:     validator,
		problemWriter: problemWriter,
		operator:      operator,
		tracer:        otel.Tracer("surveyapi/handler"),
	}
}

// GetSurveyHandler returns a survey definition with a new response token.
func (h *Handler) GetSurveyHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "GetSurveyHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	s, err := h.operator.GetSurvey(traceCtx, r.URL.Query().Get("surveyId"))
	if err != nil {
		logFailure(logger, err)
		span.RecordError(err)
		writeFailure(w, err)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, SurveyResponse{Success: true, Data: s})
}

// SubmitHandler stores a completed survey.
func (h *Handler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "SubmitHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	var payload survey.Payload
	err := handlerutil.ParseAndValidateRequestBody(traceCtx, h.validator, r, &payload)
	if err != nil {
		err = fmt.Errorf("%w: %v", internal.ErrInvalidRequestBody, err)
		span.RecordError(err)
		writeFailure(w, err)
		return
	}

	submission, err := h.operator.Submit(traceCtx, payload)
	if err != nil {
		logFailure(logger, err)
		span.RecordError(err)
		writeFailure(w, err)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusCreated, SubmitResponse{
		Success: true,
		Data:    SubmitReceipt{ID: submission.ID.String(), SurveyID: submission.SurveyID},
	})
}

// ExportHandler streams every submission of a survey as an XLSX workbook.
func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "ExportHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	surveyID := r.URL.Query().Get("surveyId")

	var buf bytes.Buffer
	err := h.operator.Export(traceCtx, surveyID, &buf)
	if err != nil {
		span.RecordError(err)
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", surveyID+"-responses.xlsx"))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(buf.Bytes())
	if err != nil {
		logger.Warn("Failed to write export body", zap.Error(err))
	}
}

func logFailure(logger *zap.Logger, err error) {
	if wireStatus(err) >= http.StatusInternalServerError {
		logger.Error("Survey api request failed", zap.Error(err))
		return
	}
	logger.Debug("Survey api request rejected", zap.Error(err))
}

func writeFailure(w http.ResponseWriter, err error) {
	status := wireStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = internal.ErrInternalServerError.Error()
	}
	handlerutil.WriteJSONResponse(w, status, FailureResponse{Success: false, Error: message})
}

// wireStatus picks the status code for errors returned to the widget, which
// reads the error field of the body rather than a problem document.
func wireStatus(err error) int {
	switch {
	case errors.Is(err, internal.ErrMissingAuthHeader),
		errors.Is(err, internal.ErrInvalidAuthHeaderFormat),
		errors.Is(err, internal.ErrUnauthorizedError),
		errors.Is(err, internal.ErrInvalidResponseToken):
		return http.StatusUnauthorized
	case errors.Is(err, internal.ErrSurveyIDMismatch):
		return http.StatusForbidden
	case errors.Is(err, internal.ErrSurveyNotFound):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrDuplicateSubmission):
		return http.StatusConflict
	case errors.Is(err, internal.ErrMissingSurveyID),
		errors.Is(err, internal.ErrInvalidRequestBody):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
