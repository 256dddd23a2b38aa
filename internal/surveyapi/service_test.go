package surveyapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/clock"
	"opineeo/survey-widget/internal/survey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Submitted(ctx context.Context, s Submission) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func intPtr(v int) *int { return &v }

func feedbackSurvey() survey.Survey {
	return survey.Survey{
		ID: "feedback",
		Questions: []survey.Question{
			{ID: "rating", Title: "How was it?", Format: survey.FormatStarRating, Required: true},
			{ID: "plan", Title: "Plan", Format: survey.FormatSingleChoice, Options: []survey.Option{
				{ID: "free", Text: "Free"},
				{ID: "pro", Text: "Pro"},
			}},
			{ID: "tools", Title: "Tools", Format: survey.FormatMultipleChoice, Options: []survey.Option{
				{ID: "go", Text: "Go"},
				{ID: "other", Text: "Other", IsOther: true},
			}},
			{ID: "thanks", Title: "Thanks", Format: survey.FormatStatement, Required: true},
			{ID: "comment", Title: "Anything else?", Format: survey.FormatLongText},
		},
	}
}

type serviceFixture struct {
	service  *Service
	tokens   *TokenIssuer
	store    *MemoryStore
	notifier *mockNotifier
	clock    *clock.Fake
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()

	c := clock.NewFake(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	tokens := NewTokenIssuer(zap.NewNop(), "test-secret", time.Hour, c)
	store := NewMemoryStore()
	notifier := &mockNotifier{}
	catalog := NewCatalog(feedbackSurvey(), survey.Survey{ID: "other", Questions: []survey.Question{
		{ID: "q", Title: "Q", Format: survey.FormatLongText},
	}})

	return serviceFixture{
		service:  NewService(zap.NewNop(), catalog, tokens, store, notifier, c),
		tokens:   tokens,
		store:    store,
		notifier: notifier,
		clock:    c,
	}
}

func TestService_GetSurvey(t *testing.T) {
	tests := []struct {
		name        string
		surveyID    string
		expectedErr error
	}{
		{name: "Should return the survey with a response token", surveyID: "feedback"},
		{name: "Should fail without a survey id", surveyID: "", expectedErr: internal.ErrMissingSurveyID},
		{name: "Should fail for an unknown survey", surveyID: "nope", expectedErr: internal.ErrSurveyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)

			s, err := f.service.GetSurvey(context.Background(), tt.surveyID)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.surveyID, s.ID)
			assert.Len(t, s.Questions, 5)
			require.NotEmpty(t, s.ResponseToken)

			tokenID, err := f.tokens.Verify(context.Background(), s.ResponseToken, tt.surveyID)
			require.NoError(t, err)
			assert.NotEmpty(t, tokenID)
		})
	}
}

func TestService_Submit(t *testing.T) {
	validEntries := []survey.Entry{
		{QuestionID: "rating", QuestionFormat: survey.FormatStarRating, TextValue: "4", NumberValue: intPtr(4)},
		{QuestionID: "plan", QuestionFormat: survey.FormatSingleChoice, TextValue: "Pro", OptionID: "pro"},
		{QuestionID: "tools", QuestionFormat: survey.FormatMultipleChoice, Answers: []survey.Answer{
			{OptionID: "go", TextValue: "Go"},
			{OptionID: "other", TextValue: "Zig", IsOther: true},
		}},
	}

	tests := []struct {
		name          string
		payload       func(t *testing.T, f serviceFixture) survey.Payload
		notifyErr     error
		expectedErr   error
		expectInvalid int
	}{
		{
			name: "Should store a valid submission",
			payload: func(t *testing.T, f serviceFixture) survey.Payload {
				return survey.Payload{ResponseToken: issue(t, f, "feedback"), SurveyID: "feedback", UserID: "u-1", Responses: validEntries}
			},
		},
		{
			name: "Should store the submission when the event cannot be published",
			payload: func(t *testing.T, f serviceFixture) survey.Payload {
				return survey.Payload{ResponseToken: issue(t, f, "feedback"), SurveyID: "feedback", Responses: validEntries}
			},
			notifyErr: errors.New("nats: connection closed"),
		},
		{
			name: "Should reject a token issued for another survey",
			payload: func(t *testing.T, f serviceFixture) survey.Payload {
				return survey.Payload{ResponseToken: issue(t, f, "other"), SurveyID: "feedback", Responses: validEntries}
			},
			expectedErr: internal.ErrSurveyIDMismatch,
		},
		{
			name: "Should reject an expired token",
			payload: func(t *testing.T, f serviceFixture) survey.Payload {
				token := issue(t, f, "feedback")
				f.clock.Advance(2 * time.Hour)
				return survey.Payload{ResponseToken: token, SurveyID: "feedback", Responses: validEntries}
			},
			expectedErr: internal.ErrInvalidResponseToken,
		},
		{
			name: "Should reject a garbage token",
			payload: func(t *testing.T, f serviceFixture) survey.Payload {
				return survey.Payload{ResponseToken: "not-a-jwt", SurveyID: "feedback", Responses: validEntries}
			},
			expectedErr: internal.ErrInvalidResponseToken,
		},
		{
			name: "Should reject an unknown survey",
			payload: func(t *testing.T, f serviceFixture) survey.Payload {
				return survey.Payload{ResponseToken: issue(t, f, "feedback"), SurveyID: "missing"}
			},
			expectedErr: internal.ErrSurveyNotFound,
		},
		{
			name: "Should report every invalid entry",
			payload: func(t *testing.T, f serviceFixture) survey.Payload {
				return survey.Payload{ResponseToken: issue(t, f, "feedback"), SurveyID: "feedback", Responses: []survey.Entry{
					{QuestionID: "plan", OptionID: "enterprise"},
					{QuestionID: "ghost", TextValue: "boo"},
				}}
			},
			expectedErr:   internal.ErrValidationFailed,
			expectInvalid: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			f.notifier.On("Submitted", mock.Anything, mock.AnythingOfType("surveyapi.Submission")).Return(tt.notifyErr).Maybe()

			payload := tt.payload(t, f)
			submission, err := f.service.Submit(context.Background(), payload)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				if tt.expectInvalid > 0 {
					var invalid internal.ErrSubmissionInvalid
					require.ErrorAs(t, err, &invalid)
					assert.Len(t, invalid.Problems, tt.expectInvalid)
				}
				f.notifier.AssertNotCalled(t, "Submitted", mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, payload.SurveyID, submission.SurveyID)
			assert.Equal(t, f.clock.Now(), submission.SubmittedAt)
			assert.NotEmpty(t, submission.TokenID)
			f.notifier.AssertNumberOfCalls(t, "Submitted", 1)

			stored, err := f.store.List(context.Background(), payload.SurveyID)
			require.NoError(t, err)
			require.Len(t, stored, 1)
			assert.Equal(t, submission.ID, stored[0].ID)
		})
	}
}

func TestService_SubmitTokenOnce(t *testing.T) {
	f := newServiceFixture(t)
	f.notifier.On("Submitted", mock.Anything, mock.Anything).Return(nil)

	payload := survey.Payload{
		ResponseToken: issue(t, f, "feedback"),
		SurveyID:      "feedback",
		Responses:     []survey.Entry{{QuestionID: "rating", NumberValue: intPtr(5)}},
	}

	_, err := f.service.Submit(context.Background(), payload)
	require.NoError(t, err)

	_, err = f.service.Submit(context.Background(), payload)
	require.ErrorIs(t, err, internal.ErrDuplicateSubmission)
	f.notifier.AssertNumberOfCalls(t, "Submitted", 1)
}

func TestCheckEntries(t *testing.T) {
	tests := []struct {
		name     string
		entries  []survey.Entry
		problems []string
	}{
		{
			name:    "Should accept the required rating alone",
			entries: []survey.Entry{{QuestionID: "rating", NumberValue: intPtr(1)}},
		},
		{
			name:     "Should require the rating",
			entries:  []survey.Entry{{QuestionID: "comment", TextValue: "hi"}},
			problems: []string{"rating"},
		},
		{
			name: "Should reject a rating above the maximum",
			entries: []survey.Entry{
				{QuestionID: "rating", NumberValue: intPtr(survey.MaxStars + 1)},
			},
			problems: []string{"rating"},
		},
		{
			name: "Should reject a repeated question",
			entries: []survey.Entry{
				{QuestionID: "rating", NumberValue: intPtr(3)},
				{QuestionID: "rating", NumberValue: intPtr(4)},
			},
			problems: []string{"rating"},
		},
		{
			name: "Should reject a mismatched format",
			entries: []survey.Entry{
				{QuestionID: "rating", NumberValue: intPtr(3)},
				{QuestionID: "comment", QuestionFormat: survey.FormatYesNo},
			},
			problems: []string{"comment"},
		},
		{
			name: "Should reject an unknown multiple choice option",
			entries: []survey.Entry{
				{QuestionID: "rating", NumberValue: intPtr(3)},
				{QuestionID: "tools", Answers: []survey.Answer{{OptionID: "rust"}}},
			},
			problems: []string{"tools"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEntries(feedbackSurvey(), tt.entries)
			if len(tt.problems) == 0 {
				require.NoError(t, err)
				return
			}

			var invalid internal.ErrSubmissionInvalid
			require.ErrorAs(t, err, &invalid)
			ids := make([]string, len(invalid.Problems))
			for i, p := range invalid.Problems {
				ids[i] = p.QuestionID
			}
			assert.Equal(t, tt.problems, ids)
		})
	}
}

func issue(t *testing.T, f serviceFixture, surveyID string) string {
	t.Helper()
	token, err := f.tokens.Issue(context.Background(), surveyID)
	require.NoError(t, err)
	return token
}
