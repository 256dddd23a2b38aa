package widget

import (
	"context"

	"opineeo/survey-widget/internal/survey"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.uber.org/zap"
)

// submit packs the answers and posts them. Delivery failures are logged and
// never block completion: OnComplete runs and the completion panel renders
// once the payload is packed.
func (w *Widget) submit(ctx context.Context) {
	traceCtx, span := w.tracer.Start(ctx, "Submit")
	defer span.End()
	logger := logutil.WithContext(traceCtx, w.logger)

	w.mu.Lock()
	if w.container == nil || w.survey == nil || w.submitting || w.done {
		w.mu.Unlock()
		return
	}
	gen := w.generation
	started := w.clock.Now()
	w.submitting = true
	w.renderLocked()

	payload, err := survey.Pack(w.survey, w.responses, w.otherText, survey.PackParams{
		ResponseToken: w.responseToken,
		SurveyID:      w.cfg.SurveyID,
		UserID:        w.cfg.UserID,
		ExtraInfo:     w.cfg.ExtraInfo,
	})
	token, responseToken := w.cfg.Token, w.responseToken
	onComplete := w.cfg.OnComplete
	if err != nil {
		logger.Error("Failed to pack survey responses", zap.Error(err))
		span.RecordError(err)
		w.submitting = false
		w.renderLocked()
		w.mu.Unlock()
		w.recorder.RecordSubmit(traceCtx, OutcomeFailed, w.clock.Now().Sub(started))
		return
	}
	w.mu.Unlock()

	outcome := OutcomeSkipped
	if token != "" && responseToken != "" {
		err = w.client.Submit(traceCtx, token, payload)
		if err != nil {
			logger.Error("Failed to submit survey response", zap.String("survey_id", payload.SurveyID), zap.Error(err))
			span.RecordError(err)
			outcome = OutcomeFailed
		} else {
			outcome = OutcomeOK
		}
	}
	w.recorder.RecordSubmit(traceCtx, outcome, w.clock.Now().Sub(started))

	w.mu.Lock()
	if w.generation != gen {
		w.mu.Unlock()
		logger.Debug("Widget destroyed while submitting, skipping completion", zap.String("survey_id", payload.SurveyID))
		return
	}
	w.mu.Unlock()

	if onComplete != nil {
		onComplete(payload)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != gen {
		return
	}
	w.done = true
	w.submitting = false
	w.renderLocked()

	logger.Info("Survey completed", zap.String("survey_id", payload.SurveyID), zap.Int("responses", len(payload.Responses)), zap.String("delivery", outcome))
}

// scheduleAutoCloseLocked closes the widget AutoClose after the completion
// panel first renders.
func (w *Widget) scheduleAutoCloseLocked() {
	if w.cfg.AutoClose <= 0 || w.autoCloseScheduled {
		return
	}
	w.autoCloseScheduled = true

	gen := w.generation
	id := w.nextTimerLocked()
	w.trackLocked(id, w.clock.AfterFunc(w.cfg.AutoClose, func() {
		w.mu.Lock()
		delete(w.timers, id)
		if w.generation != gen {
			w.mu.Unlock()
			return
		}
		w.closeLocked(context.Background())
	}))
}
