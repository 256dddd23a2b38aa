package survey

import "strings"

const (
	DefaultYesLabel = "Yes"
	DefaultNoLabel  = "No"

	yesValue = "yes"
	noValue  = "no"
)

type YesNo struct {
	question Question
	YesLabel string
	NoLabel  string
}

func NewYesNo(q Question) YesNo {
	yes := q.YesLabel
	if yes == "" {
		yes = DefaultYesLabel
	}
	no := q.NoLabel
	if no == "" {
		no = DefaultNoLabel
	}

	return YesNo{question: q, YesLabel: yes, NoLabel: no}
}

func (y YesNo) Question() Question {
	return y.question
}

// Choices exposes the two pseudo options rendered as radios.
func (y YesNo) Choices() []Option {
	return []Option{
		{ID: yesValue, Text: y.YesLabel},
		{ID: noValue, Text: y.NoLabel},
	}
}

// Picked returns the pseudo option id matching the stored boolean, or "".
func (y YesNo) Picked(resp *Response) string {
	if resp == nil || resp.Kind != ValueBoolean {
		return ""
	}
	if resp.Boolean {
		return yesValue
	}
	return noValue
}

func (y YesNo) Apply(action Action, _ *Response, value string) (Outcome, error) {
	if action != ActionSet {
		return Outcome{}, ErrUnsupportedAction{Format: FormatYesNo, Action: action}
	}

	return Outcome{
		Response:   BooleanResponse(y.question.ID, strings.EqualFold(value, yesValue)),
		ClearOther: true,
	}, nil
}

func (y YesNo) Pack(resp Response, otherText string) Entry {
	entry := baseEntry(y.question, resp)
	if resp.Kind == ValueBoolean {
		entry.TextValue = y.label(resp.Boolean)
	}
	return withOtherText(entry, resp, otherText)
}

func (y YesNo) DisplayValue(resp Response, _ string) string {
	if resp.Kind != ValueBoolean {
		return ""
	}
	return y.label(resp.Boolean)
}

func (y YesNo) label(value bool) string {
	if value {
		return y.YesLabel
	}
	return y.NoLabel
}
