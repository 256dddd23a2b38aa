package survey

import "strings"

// ValueKind tags which value field of a Response is populated.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueBoolean
	ValueNumber
	ValueText
)

// Response is the stored answer for one question. Choice formats carry their
// selection in OptionID (comma-joined for multi-select) with Kind == ValueNone.
type Response struct {
	QuestionID string
	Kind       ValueKind
	Boolean    bool
	Number     int
	Text       string
	OptionID   string
	IsOther    bool
}

func BooleanResponse(questionID string, value bool) Response {
	return Response{QuestionID: questionID, Kind: ValueBoolean, Boolean: value}
}

func NumberResponse(questionID string, value int) Response {
	return Response{QuestionID: questionID, Kind: ValueNumber, Number: value}
}

func TextResponse(questionID string, value string) Response {
	return Response{QuestionID: questionID, Kind: ValueText, Text: value}
}

func OptionResponse(questionID string, optionID string, isOther bool) Response {
	return Response{QuestionID: questionID, OptionID: optionID, IsOther: isOther}
}

// SelectedOptionIDs splits OptionID into its non-empty, trimmed ids.
func (r Response) SelectedOptionIDs() []string {
	if r.OptionID == "" {
		return nil
	}

	parts := strings.Split(r.OptionID, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// Selected reports whether optionID is part of the response's selection.
func (r Response) Selected(optionID string) bool {
	for _, id := range r.SelectedOptionIDs() {
		if id == optionID {
			return true
		}
	}
	return false
}
