package session

import (
	"context"
	log "log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"rehearse/internal/history"
	"rehearse/internal/interview"
)

// GuestOwner owns sessions of candidates without an identity.
const GuestOwner = "guest"

type Evaluator interface {
	Summarize(ctx context.Context, messages []interview.Message, role string) (interview.Evaluation, error)
}

// Summarizer scores a finished conversation and persists exactly one
// history record per call.
type Summarizer struct {
	eval  Evaluator
	store history.Store
	now   func() time.Time
}

func NewSummarizer(eval Evaluator, store history.Store) *Summarizer {
	return &Summarizer{eval: eval, store: store, now: time.Now}
}

// Finalize never fails to produce a record: an evaluator error yields the
// degraded placeholder. The returned error reports a failed write only.
func (s *Summarizer) Finalize(ctx context.Context, owner, role string, messages []interview.Message) (*history.Session, error) {
	ev, err := s.eval.Summarize(ctx, messages, role)
	if err != nil {
		log.Warn("Summary failed, storing placeholder", "owner", owner, "err", err)
		ev = interview.Degraded()
	}

	if owner == "" {
		owner = GuestOwner
	}
	if role == "" {
		role = "General"
	}

	rec := &history.Session{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		Role:       role,
		Messages:   append([]interview.Message(nil), messages...),
		Score:      int(math.Round(ev.Score)),
		Summary:    ev.Summary,
		Strengths:  ev.Strengths,
		Weaknesses: ev.Weaknesses,
		CreatedAt:  s.now(),
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return rec, err
	}

	log.Info("Session stored", "owner", owner, "score", rec.Score)
	return rec, nil
}
