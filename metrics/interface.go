package metrics

// Metrics is the instrumentation surface used by the engine and HTTP layer.
type Metrics interface {
	IncDerivations()
	AddBadgesEarned(n int)
	IncBadgesGranted()
	IncRoleDecision(allowed bool, reason string)
	IncEventsDropped()
	ObserveRequestDuration(route string, seconds float64)
}

// Noop discards everything.
type Noop struct{}

func (Noop) IncDerivations()                        {}
func (Noop) AddBadgesEarned(int)                    {}
func (Noop) IncBadgesGranted()                      {}
func (Noop) IncRoleDecision(bool, string)           {}
func (Noop) IncEventsDropped()                      {}
func (Noop) ObserveRequestDuration(string, float64) {}

var _ Metrics = Noop{}
