package survey

type LongText struct {
	question Question
}

func NewLongText(q Question) LongText {
	return LongText{question: q}
}

func (l LongText) Question() Question { return l.question }

// Value returns the stored text, "" when unanswered.
func (l LongText) Value(resp *Response) string {
	if resp == nil || resp.Kind != ValueText {
		return ""
	}
	return resp.Text
}

func (l LongText) Apply(action Action, _ *Response, value string) (Outcome, error) {
	if action != ActionSetText {
		return Outcome{}, ErrUnsupportedAction{Format: FormatLongText, Action: action}
	}

	return Outcome{Response: TextResponse(l.question.ID, value)}, nil
}

func (l LongText) Pack(resp Response, otherText string) Entry {
	return withOtherText(baseEntry(l.question, resp), resp, otherText)
}

func (l LongText) DisplayValue(resp Response, _ string) string {
	return resp.Text
}

// Statement is read-only text; it never produces a response.
type Statement struct {
	question Question
}

func NewStatement(q Question) Statement {
	return Statement{question: q}
}

func (s Statement) Question() Question { return s.question }

func (s Statement) Apply(action Action, _ *Response, _ string) (Outcome, error) {
	return Outcome{}, ErrUnsupportedAction{Format: FormatStatement, Action: action}
}

func (s Statement) Pack(resp Response, otherText string) Entry {
	return withOtherText(baseEntry(s.question, resp), resp, otherText)
}

func (s Statement) DisplayValue(Response, string) string {
	return ""
}
