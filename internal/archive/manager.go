package archive

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// Store defines the interface for archive storage backends
type Store interface {
	SaveTurn(turn *TurnRecord) error
	GetTurn(id string) (*TurnRecord, error)
	ListTurns(limit int) ([]*TurnRecord, error)
	ListSessionTurns(sessionID string) ([]*TurnRecord, error)
	DeleteTurn(id string) error

	Close() error
}

// Manager tracks turn lifecycles on top of a Store. A nil Manager discards
// everything, so playback works without an archive.
type Manager struct {
	store Store
	mu    sync.Mutex
	now   func() time.Time
}

// NewManager creates a manager for the configured driver
func NewManager(driver, path string) (*Manager, error) {
	var store Store
	var err error

	switch driver {
	case "memory", "":
		store = NewMemoryStore()
	case "sqlite":
		store, err = NewSQLiteStore(path)
		if err != nil {
			return nil, sterrors.Wrap(sterrors.CodeArchiveError, "failed to open sqlite archive", err).
				WithSuggestion("Check that archive.path is writable")
		}
	default:
		return nil, sterrors.Newf(sterrors.CodeArchiveError, "unsupported archive driver: %s", driver).
			WithSuggestion("Use sqlite or memory")
	}

	return NewManagerWithStore(store), nil
}

// NewManagerWithStore wraps an existing store
func NewManagerWithStore(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Close closes the underlying store
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	return m.store.Close()
}

// StartTurn records a new playing turn for the session
func (m *Manager) StartTurn(sessionID, query string) (*TurnRecord, error) {
	if m == nil {
		return &TurnRecord{ID: uuid.NewString(), SessionID: sessionID, Query: query, Status: TurnPlaying, StartedAt: time.Now()}, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	turn := &TurnRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Query:     query,
		Status:    TurnPlaying,
		StartedAt: m.now(),
		Events:    []timeline.SimulatedEvent{},
	}
	if err := m.store.SaveTurn(turn); err != nil {
		return nil, sterrors.Wrap(sterrors.CodeArchiveError, "failed to save turn", err)
	}
	return turn, nil
}

// CompleteTurn stores the played timeline and the final answer
func (m *Manager) CompleteTurn(id string, source timeline.Source, events []timeline.SimulatedEvent, answer string) (*TurnRecord, error) {
	return m.finish(id, func(turn *TurnRecord) {
		turn.Status = TurnCompleted
		turn.Source = string(source)
		turn.Events = append([]timeline.SimulatedEvent{}, events...)
		turn.Answer = answer
	})
}

// SupersedeTurn marks a turn abandoned because a newer query replaced it
func (m *Manager) SupersedeTurn(id string) (*TurnRecord, error) {
	return m.finish(id, func(turn *TurnRecord) {
		turn.Status = TurnSuperseded
	})
}

func (m *Manager) finish(id string, apply func(*TurnRecord)) (*TurnRecord, error) {
	if m == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	turn, err := m.store.GetTurn(id)
	if err != nil {
		return nil, err
	}
	if turn.Done() {
		return turn, nil
	}

	apply(turn)
	turn.CompletedAt = m.now()
	if err := m.store.SaveTurn(turn); err != nil {
		return nil, sterrors.Wrap(sterrors.CodeArchiveError, fmt.Sprintf("failed to save turn %s", id), err)
	}
	return turn, nil
}

// SetMetadata sets a key on a stored turn
func (m *Manager) SetMetadata(id, key string, value interface{}) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	turn, err := m.store.GetTurn(id)
	if err != nil {
		return err
	}
	if turn.Metadata == nil {
		turn.Metadata = make(map[string]interface{})
	}
	turn.Metadata[key] = value
	return m.store.SaveTurn(turn)
}

// GetTurn retrieves a turn by ID
func (m *Manager) GetTurn(id string) (*TurnRecord, error) {
	if m == nil {
		return nil, sterrors.Newf(sterrors.CodeTurnNotFound, "turn not found: %s", id)
	}
	return m.store.GetTurn(id)
}

// ListTurns lists recent turns across sessions, newest first. A
// non-positive limit lists everything.
func (m *Manager) ListTurns(limit int) ([]*TurnRecord, error) {
	if m == nil {
		return []*TurnRecord{}, nil
	}
	return m.store.ListTurns(limit)
}

// SessionTurns lists a session's turns oldest first
func (m *Manager) SessionTurns(sessionID string) ([]*TurnRecord, error) {
	if m == nil {
		return []*TurnRecord{}, nil
	}
	return m.store.ListSessionTurns(sessionID)
}

// DeleteTurn removes a turn
func (m *Manager) DeleteTurn(id string) error {
	if m == nil {
		return nil
	}
	if _, err := m.store.GetTurn(id); err != nil {
		return err
	}
	return m.store.DeleteTurn(id)
}

// Prune deletes finished turns that completed before cutoff and returns how
// many were removed.
func (m *Manager) Prune(cutoff time.Time) (int, error) {
	if m == nil {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	turns, err := m.store.ListTurns(0)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, t := range turns {
		if !t.Done() || !t.CompletedAt.Before(cutoff) {
			continue
		}
		if err := m.store.DeleteTurn(t.ID); err != nil {
			return removed, sterrors.Wrap(sterrors.CodeArchiveError, "failed to prune turn", err)
		}
		removed++
	}
	return removed, nil
}
