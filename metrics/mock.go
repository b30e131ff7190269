package metrics

import "sync"

// Mock records calls for assertions in tests. It is safe for concurrent use.
type Mock struct {
	mu            sync.Mutex
	Derivations   int
	BadgesEarned  int
	BadgesGranted int
	Decisions     map[string]int
	EventsDropped int
	Requests      map[string]int
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{Decisions: map[string]int{}, Requests: map[string]int{}}
}

func (m *Mock) IncDerivations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Derivations++
}

func (m *Mock) AddBadgesEarned(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BadgesEarned += n
}

func (m *Mock) IncBadgesGranted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BadgesGranted++
}

// IncRoleDecision keys decisions as "allowed" or the denial reason.
func (m *Mock) IncRoleDecision(allowed bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if allowed {
		m.Decisions["allowed"]++
		return
	}
	m.Decisions[reason]++
}

func (m *Mock) IncEventsDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsDropped++
}

func (m *Mock) ObserveRequestDuration(route string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[route]++
}

// Snapshot returns copies of the decision and request counters.
func (m *Mock) Snapshot() (decisions, requests map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	decisions = make(map[string]int, len(m.Decisions))
	for k, v := range m.Decisions {
		decisions[k] = v
	}
	requests = make(map[string]int, len(m.Requests))
	for k, v := range m.Requests {
		requests[k] = v
	}
	return decisions, requests
}

var _ Metrics = (*Mock)(nil)
