package handlers

import (
	"sync"
	"time"
)

// ProgressSnapshot is the state reported by GET /progress.
type ProgressSnapshot struct {
	Command   string    `json:"command"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Done      bool      `json:"done"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Progress tracks the running command. Update has the shape of the
// services progress callback so it can be passed directly.
type Progress struct {
	mu   sync.Mutex
	snap ProgressSnapshot
	now  func() time.Time
}

// NewProgress starts tracking command.
func NewProgress(command string) *Progress {
	p := &Progress{now: time.Now}
	p.snap = ProgressSnapshot{Command: command, StartedAt: p.now()}
	return p
}

// Update records completed of total finished units.
func (p *Progress) Update(completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Completed = completed
	p.snap.Total = total
	p.snap.UpdatedAt = p.now()
}

// Finish marks the command as done.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Done = true
	p.snap.UpdatedAt = p.now()
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}
