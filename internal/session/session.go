// Package session keeps the per-user dataset state of the dashboard: the raw
// upload, the segmented table and the scored test partition produced by the
// last pipeline run.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"loanrecovery/internal/dataset"
	"loanrecovery/pkg/contracts/domain"
)

// LastError is the classified failure of the most recent run.
type LastError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is one user's working dataset. A session is either ready, with
// both tables from the same run, or not ready with no tables.
type Session struct {
	mu sync.RWMutex

	id        string
	source    string
	raw       *dataset.Table
	segmented []domain.SegmentedBorrower
	risk      []domain.RiskAssessment
	ready     bool
	lastErr   *LastError
	runs      int
	createdAt time.Time
	updatedAt time.Time
}

// Result is the complete output of a successful run.
type Result struct {
	Source    string
	Raw       *dataset.Table
	Segmented []domain.SegmentedBorrower
	Risk      []domain.RiskAssessment
}

// Snapshot is a consistent read-only copy of a session.
type Snapshot struct {
	ID        string                     `json:"id"`
	Source    string                     `json:"source,omitempty"`
	Ready     bool                       `json:"ready"`
	Rows      int                        `json:"rows"`
	Columns   []string                   `json:"columns,omitempty"`
	TestRows  int                        `json:"test_rows"`
	Runs      int                        `json:"runs"`
	LastError *LastError                 `json:"last_error,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Raw       *dataset.Table             `json:"-"`
	Segmented []domain.SegmentedBorrower `json:"-"`
	Risk      []domain.RiskAssessment    `json:"-"`
}

// New creates an empty session with a random id.
func New() *Session {
	now := time.Now()
	return &Session{id: uuid.New().String(), createdAt: now, updatedAt: now}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Reset empties the session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.lastErr = nil
	s.updatedAt = time.Now()
}

// Apply replaces the session contents with a successful run.
func (s *Session) Apply(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = r.Source
	s.raw = r.Raw
	s.segmented = r.Segmented
	s.risk = r.Risk
	s.ready = true
	s.lastErr = nil
	s.runs++
	s.updatedAt = time.Now()
}

// Fail records a failed run and drops any previous tables.
func (s *Session) Fail(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.lastErr = &LastError{Kind: kind, Message: message}
	s.runs++
	s.updatedAt = time.Now()
}

// Ready reports whether the session holds a completed run.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Snapshot returns the current state. Tables are shared, not copied; callers
// must treat them as read-only.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:        s.id,
		Source:    s.source,
		Ready:     s.ready,
		TestRows:  len(s.risk),
		Runs:      s.runs,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
		Raw:       s.raw,
		Segmented: s.segmented,
		Risk:      s.risk,
	}
	if s.raw != nil {
		snap.Rows = s.raw.Len()
		snap.Columns = append([]string(nil), s.raw.Header...)
	}
	if s.lastErr != nil {
		e := *s.lastErr
		snap.LastError = &e
	}
	return snap
}

func (s *Session) clear() {
	s.source = ""
	s.raw = nil
	s.segmented = nil
	s.risk = nil
	s.ready = false
}
