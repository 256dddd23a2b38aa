package surveybuilder

import (
	"opineeo/survey-widget/internal/survey"
)

type Option func(*FactoryParams)

type FactoryParams struct {
	ID        string
	Questions []survey.Question
	Style     string
	Branding  bool
}

func WithID(id string) Option {
	return func(p *FactoryParams) { p.ID = id }
}

func WithQuestions(questions ...survey.Question) Option {
	return func(p *FactoryParams) { p.Questions = questions }
}

func WithStyle(css string) Option {
	return func(p *FactoryParams) { p.Style = css }
}

func WithBranding(branding bool) Option {
	return func(p *FactoryParams) { p.Branding = branding }
}

type QuestionOption func(*survey.Question)

func Required() QuestionOption {
	return func(q *survey.Question) { q.Required = true }
}

func WithQuestionID(id string) QuestionOption {
	return func(q *survey.Question) { q.ID = id }
}

func WithTitle(title string) QuestionOption {
	return func(q *survey.Question) { q.Title = title }
}

// WithOther appends an is-other option to a choice question.
func WithOther() QuestionOption {
	return func(q *survey.Question) {
		q.Options = append(q.Options, survey.Option{ID: "other", Text: "Other", IsOther: true})
	}
}

func WithLabels(yes, no string) QuestionOption {
	return func(q *survey.Question) {
		q.YesLabel = yes
		q.NoLabel = no
	}
}
