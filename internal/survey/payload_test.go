package survey

import (
	"encoding/json"
	"testing"

	"opineeo/survey-widget/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSurvey() *Survey {
	return &Survey{
		ID: "s1",
		Questions: []Question{
			{ID: "q1", Title: "Rate us", Format: FormatStarRating, Required: true},
			{ID: "q2", Title: "Tell us more", Format: FormatLongText},
			{ID: "q3", Title: "Happy?", Format: FormatYesNo, YesLabel: "Yep", NoLabel: "Nope"},
			{ID: "q4", Title: "Channels", Format: FormatMultipleChoice, Options: createTestOptions()},
			{ID: "q5", Title: "Notice", Format: FormatStatement, Description: "Thanks"},
		},
	}
}

func TestPack(t *testing.T) {
	tests := []struct {
		name      string
		responses map[string]Response
		other     map[string]string
		params    PackParams
		validate  func(t *testing.T, payload Payload)
	}{
		{
			name:      "Should include only answered questions in question order",
			responses: map[string]Response{"q3": BooleanResponse("q3", true), "q1": NumberResponse("q1", 4)},
			params:    PackParams{ResponseToken: "rt", SurveyID: "s1"},
			validate: func(t *testing.T, payload Payload) {
				require.Len(t, payload.Responses, 2)
				assert.Equal(t, "q1", payload.Responses[0].QuestionID)
				assert.Equal(t, "q3", payload.Responses[1].QuestionID)
				require.NotNil(t, payload.Responses[0].NumberValue)
				assert.Equal(t, 4, *payload.Responses[0].NumberValue)
				assert.Equal(t, "rt", payload.ResponseToken)
			},
		},
		{
			name:      "Should resolve yes/no boolean to its label",
			responses: map[string]Response{"q3": BooleanResponse("q3", true)},
			validate: func(t *testing.T, payload Payload) {
				require.Len(t, payload.Responses, 1)
				assert.Equal(t, "Yep", payload.Responses[0].TextValue)
				require.NotNil(t, payload.Responses[0].BooleanValue)
				assert.True(t, *payload.Responses[0].BooleanValue)
				assert.Equal(t, FormatYesNo, payload.Responses[0].QuestionFormat)
				assert.Equal(t, "Happy?", payload.Responses[0].QuestionTitle)
			},
		},
		{
			name:      "Should pack multiple choice answers with other text",
			responses: map[string]Response{"q4": OptionResponse("q4", "b,other", true)},
			other:     map[string]string{"q4": "xyz"},
			validate: func(t *testing.T, payload Payload) {
				require.Len(t, payload.Responses, 1)
				answers := payload.Responses[0].Answers
				require.Len(t, answers, 2)
				assert.Equal(t, "xyz", answers[1].TextValue)
				assert.True(t, answers[1].IsOther)
			},
		},
		{
			name:      "Should fall back to survey id when none was configured",
			responses: map[string]Response{},
			validate: func(t *testing.T, payload Payload) {
				assert.Equal(t, "s1", payload.SurveyID)
				assert.Empty(t, payload.Responses)
			},
		},
		{
			name:      "Should carry user id and extra info",
			responses: map[string]Response{"q2": TextResponse("q2", "great")},
			params:    PackParams{UserID: "u-1", ExtraInfo: "plan=pro"},
			validate: func(t *testing.T, payload Payload) {
				assert.Equal(t, "u-1", payload.UserID)
				assert.Equal(t, "plan=pro", payload.ExtraInfo)
				assert.Equal(t, "great", payload.Responses[0].TextValue)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Pack(testSurvey(), tt.responses, tt.other, tt.params)
			require.NoError(t, err)
			tt.validate(t, payload)
		})
	}
}

func TestPack_NilSurvey(t *testing.T) {
	_, err := Pack(nil, nil, nil, PackParams{})
	require.ErrorIs(t, err, internal.ErrSurveyNotFound)
}

func TestPayload_JSONShape(t *testing.T) {
	payload, err := Pack(testSurvey(), map[string]Response{
		"q1": NumberResponse("q1", 5),
		"q4": OptionResponse("q4", "a", false),
	}, nil, PackParams{ResponseToken: "rt", SurveyID: "s1"})
	require.NoError(t, err)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.NotContains(t, decoded, "userId")
	assert.NotContains(t, decoded, "extraInfo")

	responses := decoded["responses"].([]any)
	rating := responses[0].(map[string]any)
	assert.Equal(t, float64(5), rating["numberValue"])
	assert.NotContains(t, rating, "booleanValue")
	assert.NotContains(t, rating, "answers")

	multi := responses[1].(map[string]any)
	assert.Contains(t, multi, "answers")
	assert.Equal(t, "", multi["textValue"])
}
