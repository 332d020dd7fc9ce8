package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/history"
	"rehearse/internal/interview"
)

type stubEvaluator struct {
	ev    interview.Evaluation
	err   error
	calls int
	role  string
}

func (s *stubEvaluator) Summarize(_ context.Context, _ []interview.Message, role string) (interview.Evaluation, error) {
	s.calls++
	s.role = role
	return s.ev, s.err
}

type failingHistory struct{ err error }

func (f failingHistory) Create(context.Context, *history.Session) error { return f.err }

func (f failingHistory) ListByOwner(context.Context, string) ([]history.Session, error) {
	return nil, f.err
}

func TestFinalizeStoresEvaluation(t *testing.T) {
	store := history.NewLocalStore()
	eval := &stubEvaluator{ev: interview.Evaluation{
		Score:      72.6,
		Strengths:  []string{"Clear", "Concise"},
		Weaknesses: []string{"Shallow", "Rushed"},
		Summary:    "Solid start.",
	}}
	s := NewSummarizer(eval, store)
	s.now = func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }

	msgs := []interview.Message{{Role: interview.RoleUser, Content: "Hi"}}
	rec, err := s.Finalize(context.Background(), "u1", "Frontend Developer", msgs)
	require.NoError(t, err)

	assert.Equal(t, 73, rec.Score)
	assert.Equal(t, "u1", rec.OwnerID)
	assert.Equal(t, "Frontend Developer", rec.Role)
	assert.Equal(t, "Frontend Developer", eval.role)
	assert.NotEmpty(t, rec.ID)

	stored, err := store.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Solid start.", stored[0].Summary)
	assert.Len(t, stored[0].Messages, 1)
}

func TestFinalizeDegradesOnEvaluatorError(t *testing.T) {
	store := history.NewLocalStore()
	s := NewSummarizer(&stubEvaluator{err: errors.New("model down")}, store)

	rec, err := s.Finalize(context.Background(), "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, rec.Score)
	assert.Equal(t, interview.UnavailableSummary, rec.Summary)
	assert.Equal(t, GuestOwner, rec.OwnerID)
	assert.Equal(t, "General", rec.Role)

	stored, err := store.ListByOwner(context.Background(), GuestOwner)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestFinalizeReportsWriteFailure(t *testing.T) {
	boom := errors.New("disk full")
	s := NewSummarizer(&stubEvaluator{ev: interview.Degraded()}, failingHistory{err: boom})

	rec, err := s.Finalize(context.Background(), "u1", "QA", nil)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, rec)
	assert.Equal(t, "QA", rec.Role)
}
