package widget

import (
	"context"

	"opineeo/survey-widget/internal/survey"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.uber.org/zap"
)

type direction int

const (
	directionRight direction = iota
	directionLeft
)

func (d direction) classes() (exit string, enter string) {
	if d == directionRight {
		return "q-exit-right", "q-enter-right"
	}
	return "q-exit-left", "q-enter-left"
}

// nextLocked expects mu held and releases it.
func (w *Widget) nextLocked(ctx context.Context) {
	questions := w.survey.Questions
	if w.done || w.submitting || w.index >= len(questions) {
		w.mu.Unlock()
		return
	}

	q := questions[w.index]
	var resp *survey.Response
	if r, ok := w.responses[q.ID]; ok {
		resp = &r
	}

	if !survey.IsValid(q, resp, w.otherText[q.ID]) {
		logutil.WithContext(ctx, w.logger).Debug("Required question not answered", zap.String("question_id", q.ID))
		w.shakeLocked()
		w.mu.Unlock()
		return
	}

	if w.index == len(questions)-1 {
		w.mu.Unlock()
		w.submit(ctx)
		return
	}

	w.transitionLocked(w.index+1, directionRight)
	w.mu.Unlock()
}

// transitionLocked plays the exit animation on the current card, then moves
// to target and plays the enter animation.
func (w *Widget) transitionLocked(target int, dir direction) {
	if w.container == nil || target < 0 || target >= len(w.survey.Questions) {
		return
	}

	exit, enter := dir.classes()
	if !w.container.Has(".qtc") {
		w.index = target
		w.renderLocked()
		return
	}

	w.container.AddClass(".qtc", exit)
	w.afterLocked(exitDuration, func() {
		if w.survey == nil || target >= len(w.survey.Questions) {
			return
		}
		w.index = target
		w.enterClass = enter
		w.renderLocked()

		w.afterLocked(enterDuration, func() {
			if w.enterClass != enter {
				return
			}
			w.enterClass = ""
			w.container.RemoveClass(".qtc", enter)
		})
	})
}

func (w *Widget) shakeLocked() {
	if w.container == nil || !w.container.SetStyle(".qc", "animation", shakeAnimation) {
		return
	}
	w.afterLocked(shakeDuration, func() {
		w.container.SetStyle(".qc", "animation", "")
	})
}

// focusLocked focuses the textarea of a long text question or the visible
// "other" box, shortly after a render.
func (w *Widget) focusLocked() {
	if w.container == nil || w.survey == nil || w.index >= len(w.survey.Questions) {
		return
	}

	q := w.survey.Questions[w.index]
	w.afterLocked(focusDelay, func() {
		if q.Format == survey.FormatLongText {
			w.container.Focus(".ta")
			return
		}
		w.container.Focus(".other:not([hidden]) .txt")
	})
}
