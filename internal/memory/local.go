package memory

import (
	"context"
	"math"
	"sort"
	"sync"
)

// LocalStore is an in-process VectorStore for tests. Nothing survives a
// restart; the daemon uses BoltStore instead.
type LocalStore struct {
	mu   sync.RWMutex
	rows map[string][]Memory
}

var _ VectorStore = (*LocalStore)(nil)

func NewLocalStore() *LocalStore {
	return &LocalStore{rows: make(map[string][]Memory)}
}

func (s *LocalStore) Save(_ context.Context, m Memory) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.OwnerID] = append(s.rows[m.OwnerID], m)
	return m, nil
}

func (s *LocalStore) Recent(_ context.Context, owner string, limit int) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rows[owner]
	out := make([]Memory, 0, min(limit, len(rows)))
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (s *LocalStore) Nearest(_ context.Context, owner string, vector []float32, k int) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nearest(s.rows[owner], vector, k), nil
}

// nearest ranks rows by cosine distance to vector. Rows of another
// dimension are ignored.
func nearest(rows []Memory, vector []float32, k int) []Memory {
	type scored struct {
		m    Memory
		dist float64
	}
	var cands []scored
	for _, m := range rows {
		if len(m.Embedding) != len(vector) {
			continue
		}
		cands = append(cands, scored{m: m, dist: 1 - cosine(m.Embedding, vector)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	out := make([]Memory, 0, min(k, len(cands)))
	for i := 0; i < len(cands) && i < k; i++ {
		out = append(out, cands[i].m)
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
