package survey

import (
	"opineeo/survey-widget/internal"
)

type Format string

const (
	FormatYesNo          Format = "YES_NO"
	FormatSingleChoice   Format = "SINGLE_CHOICE"
	FormatMultipleChoice Format = "MULTIPLE_CHOICE"
	FormatStarRating     Format = "STAR_RATING"
	FormatLongText       Format = "LONG_TEXT"
	FormatStatement      Format = "STATEMENT"
)

// Formats lists every format the engine knows how to render, in documentation order.
var Formats = []Format{
	FormatYesNo,
	FormatSingleChoice,
	FormatMultipleChoice,
	FormatStarRating,
	FormatLongText,
	FormatStatement,
}

func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

type Option struct {
	ID      string `json:"id" yaml:"id" validate:"required"`
	Text    string `json:"text" yaml:"text"`
	IsOther bool   `json:"isOther,omitempty" yaml:"isOther,omitempty"`
}

type Question struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Format      Format   `json:"format" yaml:"format" validate:"required,oneof=YES_NO SINGLE_CHOICE MULTIPLE_CHOICE STAR_RATING LONG_TEXT STATEMENT"`
	Required    bool     `json:"required,omitempty" yaml:"required,omitempty"`
	YesLabel    string   `json:"yesLabel,omitempty" yaml:"yesLabel,omitempty"`
	NoLabel     string   `json:"noLabel,omitempty" yaml:"noLabel,omitempty"`
	Options     []Option `json:"options,omitempty" yaml:"options,omitempty" validate:"required_if=Format SINGLE_CHOICE,required_if=Format MULTIPLE_CHOICE,dive"`
}

// Option returns the option with the given id.
func (q Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

type Survey struct {
	ID            string     `json:"id" yaml:"id"`
	Questions     []Question `json:"questions" yaml:"questions" validate:"dive"`
	Style         string     `json:"style,omitempty" yaml:"style,omitempty" validate:"css_safe"`
	Branding      bool       `json:"branding" yaml:"branding"`
	ResponseToken string     `json:"responseToken,omitempty" yaml:"responseToken,omitempty"`
}

// Question returns the question with the given id.
func (s Survey) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Len is the number of questions; a widget index equal to Len means the survey is complete.
func (s Survey) Len() int {
	return len(s.Questions)
}

// CheckUnique reports the first question id that appears more than once.
func (s Survey) CheckUnique() error {
	seen := make(map[string]bool, len(s.Questions))
	for _, q := range s.Questions {
		if seen[q.ID] {
			return ErrInvalidDefinition{QuestionID: q.ID, Message: internal.ErrDuplicateQuestionID.Error()}
		}
		seen[q.ID] = true
	}
	return nil
}
