package widget

import (
	"opineeo/survey-widget/internal/survey"

	"go.uber.org/zap"
)

func (w *Widget) viewLocked() View {
	v := View{
		Loading:     w.loading,
		Unavailable: w.errMsg != "" || (w.survey == nil && !w.loading),
		Error:       w.errMsg,
		Done:        w.done,
		Submitting:  w.submitting,
		Branding:    w.branding,
		EnterClass:  w.enterClass,
	}
	if w.survey == nil || len(w.survey.Questions) == 0 {
		return v
	}

	total := len(w.survey.Questions)
	v.HasQuestions = true
	v.Completed = w.done || w.index >= total
	v.ShowPrev = w.index > 0
	v.IsLast = w.index == total-1
	if !v.Completed {
		q := w.survey.Questions[w.index]
		var resp *survey.Response
		if r, ok := w.responses[q.ID]; ok {
			resp = &r
		}
		v.Card = NewCardView(q, resp, w.otherText[q.ID])
	}
	return v
}

// renderLocked re-renders the whole container from state.
func (w *Widget) renderLocked() {
	if w.container == nil {
		return
	}
	if w.scopeClass != "" {
		w.container.SetClassName(w.scopeClass)
	}

	v := w.viewLocked()
	out, err := Render(v)
	if err != nil {
		w.logger.Error("Failed to render widget", zap.Error(err))
		return
	}
	w.container.SetHTML(out)

	if v.Completed && v.HasQuestions {
		w.scheduleAutoCloseLocked()
	}
	w.focusLocked()
}

// PreviewView is the view of s showing the question at index, or the
// completion panel when index is past the last question.
func PreviewView(s survey.Survey, index int, branding bool) View {
	v := View{Branding: branding}
	total := len(s.Questions)
	if total == 0 {
		v.Unavailable = true
		v.Error = ErrSurveyNotFoundMessage
		return v
	}
	if index < 0 {
		index = 0
	}

	v.HasQuestions = true
	v.Completed = index >= total
	v.Done = v.Completed
	v.ShowPrev = index > 0 && !v.Completed
	v.IsLast = index == total-1
	if !v.Completed {
		v.Card = NewCardView(s.Questions[index], nil, "")
	}
	return v
}
