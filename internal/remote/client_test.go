package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validSurveyBody = `{
	"success": true,
	"data": {
		"id": "s1",
		"branding": true,
		"responseToken": "rt-1",
		"style": ".qt{color:red}",
		"questions": [{"id": "q1", "title": "Rate", "format": "STAR_RATING", "required": true}]
	}
}`

func TestClient_FetchSurvey(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		expectedMessage string
		expectedErr     error
		validate        func(t *testing.T, s survey.Survey)
	}{
		{
			name:   "Should return survey with token, branding and style",
			status: http.StatusOK,
			body:   validSurveyBody,
			validate: func(t *testing.T, s survey.Survey) {
				assert.Equal(t, "s1", s.ID)
				assert.Equal(t, "rt-1", s.ResponseToken)
				assert.True(t, s.Branding)
				assert.Equal(t, ".qt{color:red}", s.Style)
				require.Len(t, s.Questions, 1)
			},
		},
		{
			name:            "Should surface the server error message on 401",
			status:          http.StatusUnauthorized,
			body:            `{"error": "Unauthorized"}`,
			expectedMessage: "Unauthorized",
			expectedErr:     internal.ErrUnauthorizedError,
		},
		{
			name:            "Should use the generic message when the error body is not JSON",
			status:          http.StatusBadGateway,
			body:            `<html>bad gateway</html>`,
			expectedMessage: MessageFetchFailed,
		},
		{
			name:            "Should reject success false",
			status:          http.StatusOK,
			body:            `{"success": false}`,
			expectedMessage: MessageInvalidSurvey,
		},
		{
			name:   "Should keep a question with an unknown format",
			status: http.StatusOK,
			body:   `{"success": true, "data": {"id": "s1", "questions": [{"id": "q1", "format": "STAR_RATING"}, {"id": "q2", "format": "SLIDER"}]}}`,
			validate: func(t *testing.T, s survey.Survey) {
				require.Len(t, s.Questions, 2)
				assert.Equal(t, survey.Format("SLIDER"), s.Questions[1].Format)
			},
		},
		{
			name:            "Should reject duplicate question ids",
			status:          http.StatusOK,
			body:            `{"success": true, "data": {"id": "s1", "questions": [{"id": "q1", "format": "LONG_TEXT"}, {"id": "q1", "format": "YES_NO"}]}}`,
			expectedMessage: MessageInvalidSurvey,
			expectedErr:     internal.ErrSurveyDefinition,
		},
		{
			name:            "Should reject a question without an id",
			status:          http.StatusOK,
			body:            `{"success": true, "data": {"id": "s1", "questions": [{"format": "LONG_TEXT"}]}}`,
			expectedMessage: MessageInvalidSurvey,
			expectedErr:     internal.ErrSurveyDefinition,
		},
		{
			name:            "Should reject a style that closes the style element",
			status:          http.StatusOK,
			body:            `{"success": true, "data": {"id": "s1", "style": "</style><script>x()</script>", "questions": []}}`,
			expectedMessage: MessageInvalidSurvey,
			expectedErr:     internal.ErrSurveyDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth, gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotQuery = r.URL.Query().Get("surveyId")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(zap.NewNop(), internal.NewValidator(), server.URL)
			s, err := client.FetchSurvey(context.Background(), "tok", "s 1")

			assert.Equal(t, "Bearer tok", gotAuth)
			assert.Equal(t, "s 1", gotQuery)

			if tt.expectedMessage != "" {
				require.Error(t, err)
				var fetchErr FetchError
				require.True(t, errors.As(err, &fetchErr))
				assert.Equal(t, tt.expectedMessage, err.Error())
				assert.Equal(t, tt.status, fetchErr.StatusCode)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
				return
			}

			require.NoError(t, err)
			tt.validate(t, s)
		})
	}
}

func TestClient_FetchSurvey_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(zap.NewNop(), nil, server.URL)
	_, err := client.FetchSurvey(context.Background(), "tok", "s1")
	require.Error(t, err)
	assert.Equal(t, MessageFetchFailed, err.Error())
}

func TestClient_Submit(t *testing.T) {
	payload := survey.Payload{ResponseToken: "rt", SurveyID: "s1", Responses: []survey.Entry{{QuestionID: "q1"}}}

	tests := []struct {
		name             string
		statuses         []int
		expectedAttempts int32
		expectErr        bool
	}{
		{name: "Should post once on success", statuses: []int{http.StatusCreated}, expectedAttempts: 1},
		{name: "Should retry server errors", statuses: []int{http.StatusServiceUnavailable, http.StatusOK}, expectedAttempts: 2},
		{name: "Should not retry client errors", statuses: []int{http.StatusBadRequest}, expectedAttempts: 1, expectErr: true},
		{name: "Should give up after max tries", statuses: []int{500, 500, 500}, expectedAttempts: 3, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			var got survey.Payload
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := attempts.Add(1)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				_ = json.NewDecoder(r.Body).Decode(&got)

				status := tt.statuses[len(tt.statuses)-1]
				if int(n) <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error": "nope"}`))
			}))
			defer server.Close()

			client := NewClient(zap.NewNop(), nil, server.URL, WithRetry(3, time.Millisecond))
			err := client.Submit(context.Background(), "tok", payload)

			assert.Equal(t, tt.expectedAttempts, attempts.Load())
			assert.Equal(t, "s1", got.SurveyID)
			if tt.expectErr {
				var submitErr SubmitError
				require.True(t, errors.As(err, &submitErr))
				assert.Equal(t, "nope", submitErr.Message)
				return
			}
			require.NoError(t, err)
		})
	}
}
