package survey

import "strings"

// Action is the value of a data-a attribute that reaches a question.
type Action string

const (
	ActionSet     Action = "set"
	ActionToggle  Action = "toggle"
	ActionRate    Action = "stars"
	ActionSetText Action = "setText"
	ActionOther   Action = "other"
)

// Outcome is the result of folding one interaction into a question's state.
type Outcome struct {
	Response Response

	// ClearOther tells the caller to drop the question's "other" free text.
	ClearOther bool
}

type Answerable interface {
	Question() Question

	// Apply folds a user interaction into the current response (nil when unanswered).
	Apply(action Action, current *Response, value string) (Outcome, error)

	// Pack converts a stored response into its submission entry.
	Pack(resp Response, otherText string) Entry

	// DisplayValue converts the response to a simple string for humans to read.
	DisplayValue(resp Response, otherText string) string
}

func NewAnswerable(q Question) (Answerable, error) {
	switch q.Format {
	case FormatYesNo:
		return NewYesNo(q), nil
	case FormatSingleChoice:
		return NewSingleChoice(q)
	case FormatMultipleChoice:
		return NewMultiChoice(q)
	case FormatStarRating:
		return NewStarRating(q), nil
	case FormatLongText:
		return NewLongText(q), nil
	case FormatStatement:
		return NewStatement(q), nil
	}

	return nil, ErrUnsupportedFormat{Format: q.Format}
}

// IsValid reports whether the question may be left. Optional questions always
// may; required ones need a response whose "other" text, when flagged, is not blank.
// Statements carry no input and are always answered.
func IsValid(q Question, resp *Response, otherText string) bool {
	if !q.Required || q.Format == FormatStatement {
		return true
	}
	if resp == nil {
		return false
	}
	if !resp.IsOther {
		return true
	}
	return strings.TrimSpace(otherText) != ""
}

// baseEntry copies the value fields every format shares.
func baseEntry(q Question, resp Response) Entry {
	entry := Entry{
		QuestionID:     q.ID,
		QuestionTitle:  q.Title,
		QuestionFormat: q.Format,
		TextValue:      resp.Text,
		OptionID:       resp.OptionID,
		IsOther:        resp.IsOther,
	}

	switch resp.Kind {
	case ValueBoolean:
		value := resp.Boolean
		entry.BooleanValue = &value
	case ValueNumber:
		value := resp.Number
		entry.NumberValue = &value
	}

	return entry
}

// withOtherText applies the is-other override shared by the single-value formats.
func withOtherText(entry Entry, resp Response, otherText string) Entry {
	if resp.IsOther && otherText != "" {
		entry.TextValue = otherText
	}
	return entry
}
