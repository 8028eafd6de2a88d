package clock

import (
	"sync"
	"time"
)

// Clock supplies wall-clock reads. Services take a Clock instead of calling
// time.Now directly so tests can drive attempt timing deterministically.
type Clock interface {
	Now() time.Time
}

// System is the production Clock backed by time.Now.
type System struct{}

// NewSystem creates a System clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current wall-clock time.
func (*System) Now() time.Time {
	return time.Now()
}

// Mock is a manually-advanced Clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a Mock clock frozen at the given instant.
func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

// Now returns the mock's current instant.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set pins the mock clock to an exact instant.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
