package surveyapi

import (
	"context"
	"sort"
	"sync"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	"github.com/google/uuid"
)

// Submission is one completed survey as stored by the API.
type Submission struct {
	ID          uuid.UUID      `json:"id"`
	TokenID     string         `json:"tokenId"`
	SurveyID    string         `json:"surveyId"`
	UserID      string         `json:"userId,omitempty"`
	ExtraInfo   string         `json:"extraInfo,omitempty"`
	Responses   []survey.Entry `json:"responses"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

type Store interface {
	// Save stores a submission. Saving a second submission with the same
	// token id fails with internal.ErrDuplicateSubmission.
	Save(ctx context.Context, s Submission) error
	// List returns the submissions of a survey, oldest first.
	List(ctx context.Context, surveyID string) ([]Submission, error)
}

type MemoryStore struct {
	mu          sync.Mutex
	submissions map[string][]Submission
	tokens      map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		submissions: make(map[string][]Submission),
		tokens:      make(map[string]bool),
	}
}

func (m *MemoryStore) Save(_ context.Context, s Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.TokenID != "" {
		if m.tokens[s.TokenID] {
			return internal.ErrDuplicateSubmission
		}
		m.tokens[s.TokenID] = true
	}
	m.submissions[s.SurveyID] = append(m.submissions[s.SurveyID], s)
	return nil
}

func (m *MemoryStore) List(_ context.Context, surveyID string) ([]Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]Submission(nil), m.submissions[surveyID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}
