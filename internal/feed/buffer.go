// Package feed reads agent activity frames from a live websocket and hands
// each turn's frames, together with its final answer, to a player.
package feed

import "sync"

// DefaultBufferSize bounds the frames kept per turn when none is configured.
const DefaultBufferSize = 200

// Buffer keeps the most recent frames of a turn, newest first. Once full the
// oldest frame is dropped.
type Buffer struct {
	mu     sync.Mutex
	frames []map[string]any
	max    int
}

// NewBuffer creates a buffer holding at most max frames.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferSize
	}
	return &Buffer{max: max}
}

// Push records a frame as the newest one.
func (b *Buffer) Push(frame map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, nil)
	copy(b.frames[1:], b.frames)
	b.frames[0] = frame
	if len(b.frames) > b.max {
		b.frames = b.frames[:b.max]
	}
}

// Snapshot returns the frames newest first.
func (b *Buffer) Snapshot() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, len(b.frames))
	copy(out, b.frames)
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Reset drops every frame.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
}
