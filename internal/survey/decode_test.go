package survey

import (
	"testing"

	"opineeo/survey-widget/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	v := internal.NewValidator()

	tests := []struct {
		name        string
		input       string
		expectedErr error
		validate    func(t *testing.T, s Survey)
	}{
		{
			name: "Should decode JSON survey",
			input: `{
				"id": "s1",
				"branding": true,
				"responseToken": "rt",
				"questions": [
					{"id": "q1", "title": "Rate", "format": "STAR_RATING", "required": true},
					{"id": "q2", "title": "Pick", "format": "SINGLE_CHOICE", "options": [{"id": "a", "text": "A"}, {"id": "o", "text": "Other", "isOther": true}]}
				]
			}`,
			validate: func(t *testing.T, s Survey) {
				assert.Equal(t, "s1", s.ID)
				assert.True(t, s.Branding)
				assert.Equal(t, "rt", s.ResponseToken)
				require.Len(t, s.Questions, 2)
				assert.True(t, s.Questions[0].Required)
				assert.True(t, s.Questions[1].Options[1].IsOther)
			},
		},
		{
			name: "Should decode YAML survey",
			input: `
id: s2
style: ".sv { color: red; }"
questions:
  - id: q1
    title: Happy?
    format: YES_NO
    yesLabel: Yep
  - id: q2
    title: Notes
    format: LONG_TEXT
`,
			validate: func(t *testing.T, s Survey) {
				assert.Equal(t, "s2", s.ID)
				assert.Equal(t, ".sv { color: red; }", s.Style)
				require.Len(t, s.Questions, 2)
				assert.Equal(t, FormatYesNo, s.Questions[0].Format)
				assert.Equal(t, "Yep", s.Questions[0].YesLabel)
			},
		},
		{
			name:        "Should reject empty document",
			input:       "   ",
			expectedErr: internal.ErrSurveyDefinition,
		},
		{
			name: "Should reject unknown YAML field",
			input: `
id: s3
colour: blue
questions: []
`,
			expectedErr: internal.ErrSurveyDefinition,
		},
		{
			name:        "Should reject unknown format",
			input:       `{"id": "s4", "questions": [{"id": "q1", "format": "SLIDER"}]}`,
			expectedErr: internal.ErrSurveyDefinition,
		},
		{
			name:        "Should reject choice question without options",
			input:       `{"id": "s5", "questions": [{"id": "q1", "format": "MULTIPLE_CHOICE"}]}`,
			expectedErr: internal.ErrSurveyDefinition,
		},
		{
			name:        "Should reject duplicate question ids",
			input:       `{"id": "s6", "questions": [{"id": "q1", "format": "LONG_TEXT"}, {"id": "q1", "format": "STATEMENT"}]}`,
			expectedErr: internal.ErrSurveyDefinition,
		},
		{
			name:        "Should reject style that closes the style element",
			input:       `{"id": "s7", "style": "</style><script>x()</script>", "questions": []}`,
			expectedErr: internal.ErrSurveyDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode(v, []byte(tt.input))
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			tt.validate(t, s)
		})
	}
}

func TestValidateStructure(t *testing.T) {
	v := internal.NewValidator()

	tests := []struct {
		name        string
		survey      Survey
		expectedErr error
	}{
		{
			name: "Should accept unknown formats and choice questions without options",
			survey: Survey{ID: "s1", Questions: []Question{
				{ID: "q1", Format: FormatStarRating},
				{ID: "q2", Format: "NPS"},
				{ID: "q3", Format: FormatSingleChoice},
			}},
		},
		{
			name:        "Should reject a missing question id",
			survey:      Survey{ID: "s1", Questions: []Question{{Format: FormatLongText}}},
			expectedErr: internal.ErrSurveyDefinition,
		},
		{
			name:        "Should reject duplicate question ids",
			survey:      Survey{ID: "s1", Questions: []Question{{ID: "q1", Format: FormatLongText}, {ID: "q1", Format: "NPS"}}},
			expectedErr: internal.ErrSurveyDefinition,
		},
		{
			name:        "Should reject style that closes the style element",
			survey:      Survey{ID: "s1", Style: "</STYLE><script>x()</script>"},
			expectedErr: internal.ErrSurveyDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStructure(v, tt.survey)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
