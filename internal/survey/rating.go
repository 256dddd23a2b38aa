package survey

import (
	"strconv"
	"strings"
)

const (
	MinStars = 1
	MaxStars = 5
)

type StarRating struct {
	question Question
}

func NewStarRating(q Question) StarRating {
	return StarRating{question: q}
}

func (s StarRating) Question() Question { return s.question }

// Stars returns the star values in render order.
func (s StarRating) Stars() []int {
	stars := make([]int, 0, MaxStars-MinStars+1)
	for k := MinStars; k <= MaxStars; k++ {
		stars = append(stars, k)
	}
	return stars
}

// Value returns the stored rating, 0 when unanswered.
func (s StarRating) Value(resp *Response) int {
	if resp == nil || resp.Kind != ValueNumber {
		return 0
	}
	return resp.Number
}

func (s StarRating) Apply(action Action, _ *Response, value string) (Outcome, error) {
	if action != ActionRate {
		return Outcome{}, ErrUnsupportedAction{Format: FormatStarRating, Action: action}
	}

	stars, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || stars < MinStars || stars > MaxStars {
		return Outcome{}, ErrInvalidRating{QuestionID: s.question.ID, RawValue: value}
	}

	return Outcome{Response: NumberResponse(s.question.ID, stars)}, nil
}

func (s StarRating) Pack(resp Response, otherText string) Entry {
	return withOtherText(baseEntry(s.question, resp), resp, otherText)
}

func (s StarRating) DisplayValue(resp Response, _ string) string {
	if resp.Kind != ValueNumber {
		return ""
	}
	return strconv.Itoa(resp.Number)
}
