package survey

import (
	"fmt"

	"opineeo/survey-widget/internal"
)

type ErrInvalidDefinition struct {
	QuestionID string
	Message    string
}

func (e ErrInvalidDefinition) Error() string {
	return fmt.Sprintf("invalid definition for question %s: %s", e.QuestionID, e.Message)
}

func (e ErrInvalidDefinition) Unwrap() error {
	return internal.ErrSurveyDefinition
}

type ErrInvalidOptionID struct {
	QuestionID string
	OptionID   string
}

func (e ErrInvalidOptionID) Error() string {
	return fmt.Sprintf("option ID %s not found for question %s", e.OptionID, e.QuestionID)
}

func (e ErrInvalidOptionID) Unwrap() error {
	return internal.ErrOptionNotFound
}

type ErrInvalidRating struct {
	QuestionID string
	RawValue   string
}

func (e ErrInvalidRating) Error() string {
	return fmt.Sprintf("invalid rating for question %s, raw value: %q", e.QuestionID, e.RawValue)
}

func (e ErrInvalidRating) Unwrap() error {
	return internal.ErrRatingOutOfRange
}

type ErrUnsupportedAction struct {
	Format Format
	Action Action
}

func (e ErrUnsupportedAction) Error() string {
	return fmt.Sprintf("action %q is not supported by %s questions", e.Action, e.Format)
}

func (e ErrUnsupportedAction) Unwrap() error {
	return internal.ErrUnsupportedAction
}

type ErrUnsupportedFormat struct {
	Format Format
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported question format: %s", e.Format)
}

func (e ErrUnsupportedFormat) Unwrap() error {
	return internal.ErrUnsupportedFormat
}
