package event

import (
	"fmt"
	"sync"
)

// Bus dispatches playback events to registered hooks.
//
// Dispatch rules:
//  1. Blocking hooks run in registration order before Emit returns.
//  2. Non-blocking hooks run in their own goroutines.
//  3. The first blocking hook failure is returned to the caller.
//  4. Non-blocking failures and panics are logged as warnings.
//  5. A nil Bus is a no-op.
type Bus struct {
	mu      sync.RWMutex
	hooks   []Hook
	enabled bool
	logger  Logger
}

// Logger is the subset of telemetry.Logger the bus needs.
type Logger interface {
	Warn(msg string, keyvals ...interface{})
}

// NewBus creates an enabled event bus. A nil logger silences warnings.
func NewBus(logger Logger) *Bus {
	return &Bus{
		hooks:   make([]Hook, 0),
		enabled: true,
		logger:  logger,
	}
}

// Register adds a hook to the bus.
func (b *Bus) Register(h Hook) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

// Unregister removes every hook with the given name and reports whether any
// was found.
func (b *Bus) Unregister(name string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.hooks[:0]
	removed := false
	for _, h := range b.hooks {
		if h.Name() == name {
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	b.hooks = kept
	return removed
}

// SetEnabled controls whether the bus dispatches events.
func (b *Bus) SetEnabled(enabled bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// Emit dispatches ev to all matching hooks.
func (b *Bus) Emit(ev Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	if !b.enabled {
		b.mu.RUnlock()
		return nil
	}
	hooks := make([]Hook, len(b.hooks))
	copy(hooks, b.hooks)
	b.mu.RUnlock()

	for _, h := range hooks {
		if !h.Matches(ev.Type) {
			continue
		}
		if !h.IsBlocking() {
			go b.dispatchAsync(h, ev)
			continue
		}
		if err := h.Handle(ev); err != nil {
			return fmt.Errorf("blocking hook %s failed: %w", h.Name(), err)
		}
	}
	return nil
}

func (b *Bus) dispatchAsync(h Hook, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.warn("Non-blocking hook panicked", "hook", h.Name(), "event", string(ev.Type), "panic", r)
		}
	}()
	if err := h.Handle(ev); err != nil {
		b.warn("Non-blocking hook failed", "hook", h.Name(), "event", string(ev.Type), "error", err)
	}
}

func (b *Bus) warn(msg string, keyvals ...interface{}) {
	if b.logger != nil {
		b.logger.Warn(msg, keyvals...)
	}
}
