package playback

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests inject a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

// TimerManager is a registry of keyed timers. At most one timer is pending
// per key; a callback that was replaced or cleared never runs, even if its
// underlying timer had already expired.
type TimerManager struct {
	mu     sync.Mutex
	clock  Clock
	timers map[string]*pendingTimer
	seq    uint64
}

type pendingTimer struct {
	id    uint64
	timer Timer
}

// NewTimerManager creates a manager on clock. A nil clock uses real time.
func NewTimerManager(clock Clock) *TimerManager {
	if clock == nil {
		clock = RealClock()
	}
	return &TimerManager{
		clock:  clock,
		timers: make(map[string]*pendingTimer),
	}
}

// Set schedules cb after delay under key, canceling any timer already
// pending under that key.
func (m *TimerManager) Set(key string, cb func(), delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.timers[key]; ok {
		prev.timer.Stop()
	}
	m.seq++
	p := &pendingTimer{id: m.seq}
	id := p.id
	p.timer = m.clock.AfterFunc(delay, func() { m.fire(key, id, cb) })
	m.timers[key] = p
}

func (m *TimerManager) fire(key string, id uint64, cb func()) {
	m.mu.Lock()
	p, ok := m.timers[key]
	if !ok || p.id != id {
		m.mu.Unlock()
		return
	}
	delete(m.timers, key)
	m.mu.Unlock()

	cb()
}

// Clear cancels the timer under key and reports whether one was pending.
func (m *TimerManager) Clear(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.timers[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(m.timers, key)
	return true
}

// ClearAll cancels every pending timer and returns how many there were.
func (m *TimerManager) ClearAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.timers)
	for key, p := range m.timers {
		p.timer.Stop()
		delete(m.timers, key)
	}
	return n
}

// Has reports whether a timer is pending under key.
func (m *TimerManager) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[key]
	return ok
}

// Pending returns the number of pending timers.
func (m *TimerManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Now returns the manager clock's current time.
func (m *TimerManager) Now() time.Time {
	return m.clock.Now()
}
