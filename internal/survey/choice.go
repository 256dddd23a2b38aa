package survey

import (
	"strings"
)

type SingleChoice struct {
	question Question
	Options  []Option
}

func NewSingleChoice(q Question) (SingleChoice, error) {
	options, err := validateAndExtractOptions(q)
	if err != nil {
		return SingleChoice{}, err
	}

	return SingleChoice{question: q, Options: options}, nil
}

func (s SingleChoice) Question() Question {
	return s.question
}

func (s SingleChoice) Apply(action Action, _ *Response, value string) (Outcome, error) {
	if action != ActionSet {
		return Outcome{}, ErrUnsupportedAction{Format: FormatSingleChoice, Action: action}
	}

	option, ok := s.question.Option(value)
	if !ok {
		return Outcome{}, ErrInvalidOptionID{QuestionID: s.question.ID, OptionID: value}
	}

	return Outcome{
		Response:   OptionResponse(s.question.ID, option.ID, option.IsOther),
		ClearOther: !option.IsOther,
	}, nil
}

func (s SingleChoice) Pack(resp Response, otherText string) Entry {
	entry := baseEntry(s.question, resp)
	entry.TextValue = ""
	if option, ok := s.question.Option(resp.OptionID); ok {
		entry.TextValue = option.Text
	}
	return withOtherText(entry, resp, otherText)
}

func (s SingleChoice) DisplayValue(resp Response, otherText string) string {
	return s.Pack(resp, otherText).TextValue
}

type MultiChoice struct {
	question Question
	Options  []Option
}

func NewMultiChoice(q Question) (MultiChoice, error) {
	options, err := validateAndExtractOptions(q)
	if err != nil {
		return MultiChoice{}, err
	}

	return MultiChoice{question: q, Options: options}, nil
}

func (m MultiChoice) Question() Question {
	return m.question
}

// Apply toggles one option in or out of the comma-joined selection. Removing
// an is-other option drops the question's other text.
func (m MultiChoice) Apply(action Action, current *Response, value string) (Outcome, error) {
	if action != ActionToggle {
		return Outcome{}, ErrUnsupportedAction{Format: FormatMultipleChoice, Action: action}
	}

	option, ok := m.question.Option(value)
	if !ok {
		return Outcome{}, ErrInvalidOptionID{QuestionID: m.question.ID, OptionID: value}
	}

	var selected []string
	if current != nil {
		selected = current.SelectedOptionIDs()
	}

	clearOther := false
	index := indexOf(selected, option.ID)
	if index > -1 {
		selected = append(selected[:index], selected[index+1:]...)
		clearOther = option.IsOther
	} else {
		selected = append(selected, option.ID)
	}

	return Outcome{
		Response:   OptionResponse(m.question.ID, strings.Join(selected, ","), m.HasOther(selected)),
		ClearOther: clearOther,
	}, nil
}

// HasOther reports whether any of the selected ids is an is-other option.
func (m MultiChoice) HasOther(selected []string) bool {
	for _, id := range selected {
		if option, ok := m.question.Option(id); ok && option.IsOther {
			return true
		}
	}
	return false
}

// Pack resolves every selected option into an answer. The is-other option
// carries the user's text instead of its label; textValue stays empty.
func (m MultiChoice) Pack(resp Response, otherText string) Entry {
	entry := baseEntry(m.question, resp)
	entry.TextValue = ""

	selected := resp.SelectedOptionIDs()
	entry.Answers = make([]Answer, 0, len(selected))
	for _, id := range selected {
		option, ok := m.question.Option(id)
		if !ok {
			continue
		}

		answer := Answer{
			OptionID:  option.ID,
			TextValue: option.Text,
			IsOther:   option.IsOther,
		}
		if option.IsOther && otherText != "" {
			answer.TextValue = otherText
		}
		entry.Answers = append(entry.Answers, answer)
	}

	return entry
}

func (m MultiChoice) DisplayValue(resp Response, otherText string) string {
	answers := m.Pack(resp, otherText).Answers
	if len(answers) == 0 {
		return ""
	}

	names := make([]string, len(answers))
	for i, answer := range answers {
		names[i] = answer.TextValue
	}
	return strings.Join(names, ", ")
}

func validateAndExtractOptions(q Question) ([]Option, error) {
	if len(q.Options) == 0 {
		return nil, ErrInvalidDefinition{QuestionID: q.ID, Message: "choice question has no options"}
	}

	seen := make(map[string]bool, len(q.Options))
	for _, option := range q.Options {
		if option.ID == "" {
			return nil, ErrInvalidDefinition{QuestionID: q.ID, Message: "option id is empty"}
		}
		if seen[option.ID] {
			return nil, ErrInvalidDefinition{QuestionID: q.ID, Message: "duplicate option id " + option.ID}
		}
		seen[option.ID] = true
	}

	return q.Options, nil
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}
