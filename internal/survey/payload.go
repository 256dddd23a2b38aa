package survey

import (
	"opineeo/survey-widget/internal"
)

// Payload is the body POSTed back to the survey API once a survey is completed.
type Payload struct {
	ResponseToken string  `json:"responseToken"`
	SurveyID      string  `json:"surveyId"`
	UserID        string  `json:"userId,omitempty"`
	ExtraInfo     string  `json:"extraInfo,omitempty"`
	Responses     []Entry `json:"responses"`
}

type Entry struct {
	QuestionID     string   `json:"questionId" validate:"required"`
	QuestionTitle  string   `json:"questionTitle"`
	QuestionFormat Format   `json:"questionFormat"`
	TextValue      string   `json:"textValue"`
	NumberValue    *int     `json:"numberValue,omitempty"`
	BooleanValue   *bool    `json:"booleanValue,omitempty"`
	OptionID       string   `json:"optionId,omitempty"`
	IsOther        bool     `json:"isOther"`
	Answers        []Answer `json:"answers,omitempty"`
}

type Answer struct {
	OptionID  string `json:"optionId"`
	TextValue string `json:"textValue"`
	IsOther   bool   `json:"isOther"`
}

// PackParams carries the identifiers that travel with every submission.
type PackParams struct {
	ResponseToken string
	SurveyID      string
	UserID        string
	ExtraInfo     string
}

// Pack builds the submission payload. Entries follow question order and only
// questions holding a response are included. A response whose question
// cannot be resolved to an Answerable falls back to the shared value fields.
func Pack(s *Survey, responses map[string]Response, otherText map[string]string, params PackParams) (Payload, error) {
	if s == nil {
		return Payload{}, internal.ErrSurveyNotFound
	}

	surveyID := params.SurveyID
	if surveyID == "" {
		surveyID = s.ID
	}

	payload := Payload{
		ResponseToken: params.ResponseToken,
		SurveyID:      surveyID,
		UserID:        params.UserID,
		ExtraInfo:     params.ExtraInfo,
		Responses:     make([]Entry, 0, len(responses)),
	}

	for _, q := range s.Questions {
		resp, ok := responses[q.ID]
		if !ok {
			continue
		}

		other := otherText[q.ID]
		answerable, err := NewAnswerable(q)
		if err != nil {
			payload.Responses = append(payload.Responses, withOtherText(baseEntry(q, resp), resp, other))
			continue
		}
		payload.Responses = append(payload.Responses, answerable.Pack(resp, other))
	}

	return payload, nil
}
