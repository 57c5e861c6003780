package server

import (
	"sort"
	"sync"
	"time"

	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/telemetry"
)

type session struct {
	player   *playback.Player
	lastUsed time.Time
}

// SessionManager keeps one player per session alive across requests so a
// new query supersedes the previous turn of the same session.
type SessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*session
	newPlayer func(sessionID string) *playback.Player
	timeout   time.Duration
	metrics   *telemetry.Metrics
	logger    *telemetry.Logger
	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// NewSessionManager creates a session manager that expires sessions idle for
// longer than timeout.
func NewSessionManager(timeout time.Duration, newPlayer func(string) *playback.Player, metrics *telemetry.Metrics, logger *telemetry.Logger) *SessionManager {
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	sm := &SessionManager{
		sessions:  make(map[string]*session),
		newPlayer: newPlayer,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	interval := timeout / 6
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	go sm.reapLoop(interval)
	return sm
}

// GetOrCreate returns the session's player, creating it on first use.
func (sm *SessionManager) GetOrCreate(sessionID string) *playback.Player {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sess, ok := sm.sessions[sessionID]; ok {
		sess.lastUsed = sm.now()
		return sess.player
	}

	sess := &session{player: sm.newPlayer(sessionID), lastUsed: sm.now()}
	sm.sessions[sessionID] = sess
	sm.metrics.AddActiveSessions(1)
	sm.logger.Debug("Session created", "session_id", sessionID)
	return sess.player
}

// Get returns an existing session's player.
func (sm *SessionManager) Get(sessionID string) (*playback.Player, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess, ok := sm.sessions[sessionID]
	if !ok {
		return nil, sterrors.Newf(sterrors.CodeSessionNotFound, "session not found: %s", sessionID).
			WithSuggestion("start a turn for the session first")
	}
	sess.lastUsed = sm.now()
	return sess.player, nil
}

// IDs lists the live session IDs in order.
func (sm *SessionManager) IDs() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove closes and forgets a session, reporting whether it existed.
func (sm *SessionManager) Remove(sessionID string) bool {
	sm.mu.Lock()
	sess, ok := sm.sessions[sessionID]
	if ok {
		delete(sm.sessions, sessionID)
		sm.metrics.AddActiveSessions(-1)
	}
	sm.mu.Unlock()

	if ok {
		sess.player.Close()
	}
	return ok
}

// Reap closes sessions idle for longer than the timeout and returns how many
// were removed.
func (sm *SessionManager) Reap() int {
	sm.mu.Lock()
	now := sm.now()
	var expired []*session
	for id, sess := range sm.sessions {
		if now.Sub(sess.lastUsed) > sm.timeout {
			sm.logger.Debug("Reaping idle session", "session_id", id)
			expired = append(expired, sess)
			delete(sm.sessions, id)
		}
	}
	sm.metrics.AddActiveSessions(-int64(len(expired)))
	sm.mu.Unlock()

	for _, sess := range expired {
		sess.player.Close()
	}
	return len(expired)
}

// Close stops the reaper and closes every session.
func (sm *SessionManager) Close() {
	sm.closeOnce.Do(func() { close(sm.done) })

	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*session)
	sm.metrics.AddActiveSessions(-int64(len(sessions)))
	sm.mu.Unlock()

	for _, sess := range sessions {
		sess.player.Close()
	}
}

func (sm *SessionManager) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.Reap()
		}
	}
}
