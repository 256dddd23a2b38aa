package surveyapi

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) InsertSubmission(ctx context.Context, arg InsertSubmissionParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *mockQuerier) ListSubmissionsBySurvey(ctx context.Context, surveyID string) ([]SubmissionRow, error) {
	args := m.Called(ctx, surveyID)
	rows, _ := args.Get(0).([]SubmissionRow)
	return rows, args.Error(1)
}

func TestPostgresStore_Save(t *testing.T) {
	submission := Submission{
		ID:          uuid.MustParse("6f1f7a8e-8c1e-4a9b-9c43-2b9d3c6f0a11"),
		TokenID:     "tok-1",
		SurveyID:    "feedback",
		Responses:   []survey.Entry{{QuestionID: "rating", NumberValue: intPtr(4)}},
		SubmittedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name        string
		insertErr   error
		expectedErr error
	}{
		{name: "Should insert the submission"},
		{name: "Should map a unique violation to a duplicate submission", insertErr: &pgconn.PgError{Code: "23505"}, expectedErr: internal.ErrDuplicateSubmission},
		{name: "Should pass through other database errors", insertErr: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{}
			q.On("InsertSubmission", mock.Anything, mock.MatchedBy(func(arg InsertSubmissionParams) bool {
				var entries []survey.Entry
				if json.Unmarshal(arg.Responses, &entries) != nil || len(entries) != 1 {
					return false
				}
				return arg.ID == submission.ID &&
					arg.TokenID == pgtype.Text{String: "tok-1", Valid: true} &&
					arg.SurveyID == "feedback" &&
					arg.SubmittedAt.Time.Equal(submission.SubmittedAt)
			})).Return(tt.insertErr)

			store := NewPostgresStoreWithQuerier(zap.NewNop(), q)
			err := store.Save(context.Background(), submission)

			q.AssertExpectations(t)
			switch {
			case tt.expectedErr != nil:
				require.ErrorIs(t, err, tt.expectedErr)
			case tt.insertErr != nil:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestPostgresStore_List(t *testing.T) {
	responses, err := json.Marshal([]survey.Entry{{QuestionID: "plan", TextValue: "Pro", OptionID: "pro"}})
	require.NoError(t, err)

	id := uuid.New()
	at := time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rows    []SubmissionRow
		wantErr bool
	}{
		{
			name: "Should decode stored rows",
			rows: []SubmissionRow{{
				ID:          id,
				TokenID:     pgtype.Text{String: "tok", Valid: true},
				SurveyID:    "feedback",
				UserID:      "u-1",
				Responses:   responses,
				SubmittedAt: pgtype.Timestamptz{Time: at, Valid: true},
			}},
		},
		{
			name:    "Should fail on a corrupt responses document",
			rows:    []SubmissionRow{{ID: id, SurveyID: "feedback", Responses: []byte("{")}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{}
			q.On("ListSubmissionsBySurvey", mock.Anything, "feedback").Return(tt.rows, nil)

			store := NewPostgresStoreWithQuerier(zap.NewNop(), q)
			got, err := store.List(context.Background(), "feedback")
			if tt.wantErr {
				require.ErrorIs(t, err, internal.ErrDatabaseError)
				return
			}

			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, id, got[0].ID)
			assert.Equal(t, "tok", got[0].TokenID)
			assert.Equal(t, "u-1", got[0].UserID)
			assert.Equal(t, at, got[0].SubmittedAt)
			assert.Equal(t, "pro", got[0].Responses[0].OptionID)
		})
	}
}
