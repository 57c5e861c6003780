package archive

import (
	"sort"
	"sync"

	sterrors "github.com/cadre-oss/storyline/internal/errors"
)

// MemoryStore keeps turns in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string]*TurnRecord
	order map[string]int // insertion sequence, breaks start time ties
	seq   int
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns: make(map[string]*TurnRecord),
		order: make(map[string]int),
	}
}

// SaveTurn inserts or replaces a turn
func (s *MemoryStore) SaveTurn(turn *TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.order[turn.ID]; !ok {
		s.seq++
		s.order[turn.ID] = s.seq
	}
	s.turns[turn.ID] = turn.clone()
	return nil
}

// GetTurn retrieves a turn
func (s *MemoryStore) GetTurn(id string) (*TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if turn, ok := s.turns[id]; ok {
		return turn.clone(), nil
	}
	return nil, sterrors.Newf(sterrors.CodeTurnNotFound, "turn not found: %s", id)
}

// ListTurns lists the most recent turns, newest first
func (s *MemoryStore) ListTurns(limit int) ([]*TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.collect(func(*TurnRecord) bool { return true })
	sort.SliceStable(turns, func(i, j int) bool {
		return s.before(turns[j], turns[i])
	})
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}

// ListSessionTurns lists a session's turns in the order they were asked
func (s *MemoryStore) ListSessionTurns(sessionID string) ([]*TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.collect(func(t *TurnRecord) bool { return t.SessionID == sessionID })
	sort.SliceStable(turns, func(i, j int) bool {
		return s.before(turns[i], turns[j])
	})
	return turns, nil
}

// DeleteTurn deletes a turn
func (s *MemoryStore) DeleteTurn(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, id)
	delete(s.order, id)
	return nil
}

// Close is a no-op for memory
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) collect(keep func(*TurnRecord) bool) []*TurnRecord {
	turns := make([]*TurnRecord, 0, len(s.turns))
	for _, t := range s.turns {
		if keep(t) {
			turns = append(turns, t.clone())
		}
	}
	return turns
}

func (s *MemoryStore) before(a, b *TurnRecord) bool {
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.Before(b.StartedAt)
	}
	return s.order[a.ID] < s.order[b.ID]
}
