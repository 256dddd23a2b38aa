package widget

import (
	"context"
	"strconv"

	"opineeo/survey-widget/internal/dom"
	"opineeo/survey-widget/internal/survey"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.uber.org/zap"
)

// Actions handled by the widget itself; everything else reaches a question.
const (
	actionClose = "close"
	actionPrev  = "prev"
	actionNext  = "next"
)

func (w *Widget) onClick(ctx context.Context, ev dom.Event) {
	w.mu.Lock()
	if w.survey == nil || w.container == nil {
		w.mu.Unlock()
		return
	}

	switch ev.Action {
	case "":
		w.mu.Unlock()
	case actionClose:
		w.closeLocked(ctx)
	case actionPrev:
		if w.index > 0 && !w.submitting {
			w.transitionLocked(w.index-1, directionLeft)
		}
		w.mu.Unlock()
	case actionNext:
		w.nextLocked(ctx)
	case string(survey.ActionSet), string(survey.ActionToggle), string(survey.ActionRate):
		w.applyLocked(ctx, ev)
		w.mu.Unlock()
	default:
		w.mu.Unlock()
	}
}

func (w *Widget) onInput(ctx context.Context, ev dom.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.survey == nil || w.container == nil {
		return
	}

	switch survey.Action(ev.Action) {
	case survey.ActionOther:
		if _, ok := w.survey.Question(ev.QuestionID); ok {
			w.otherText[ev.QuestionID] = ev.Value
		}
	case survey.ActionSetText:
		w.applyLocked(ctx, ev)
	}
}

// applyLocked folds a question interaction into the responses. Invalid
// interactions are logged and ignored.
func (w *Widget) applyLocked(ctx context.Context, ev dom.Event) {
	logger := logutil.WithContext(ctx, w.logger)

	q, ok := w.survey.Question(ev.QuestionID)
	if !ok {
		logger.Debug("Event for unknown question ignored", zap.String("question_id", ev.QuestionID), zap.String("action", ev.Action))
		return
	}

	answerable, err := survey.NewAnswerable(q)
	if err != nil {
		logger.Warn("Question cannot be answered", zap.String("question_id", q.ID), zap.Error(err))
		return
	}

	action := survey.Action(ev.Action)
	value := ev.Value
	if action == survey.ActionRate {
		if ev.Star == 0 {
			return
		}
		value = strconv.Itoa(ev.Star)
	}

	var current *survey.Response
	if resp, ok := w.responses[q.ID]; ok {
		current = &resp
	}

	outcome, err := answerable.Apply(action, current, value)
	if err != nil {
		logger.Debug("Interaction ignored", zap.String("question_id", q.ID), zap.String("action", ev.Action), zap.Error(err))
		return
	}

	w.responses[q.ID] = outcome.Response
	if outcome.ClearOther {
		delete(w.otherText, q.ID)
	}

	// typing into a textarea must not re-render under the cursor
	if action != survey.ActionSetText {
		w.renderLocked()
	}
}
