package enginetest

import (
	"sync"

	"github.com/google/uuid"
)

// Track is an in-memory media track.
type Track struct {
	mu      sync.Mutex
	id      string
	kind    string
	enabled bool
	stopped bool
}

// NewTrack creates an enabled track. An empty id gets a random one.
func NewTrack(kind, id string) *Track {
	if len(id) == 0 {
		id = uuid.NewString()
	}
	return &Track{id: id, kind: kind, enabled: true}
}

func (t *Track) ID() string   { return t.id }
func (t *Track) Kind() string { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
