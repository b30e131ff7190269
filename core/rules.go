package core

// Predicate decides whether a normalized stat record satisfies a condition.
type Predicate func(StatRecord) bool

// BadgeRule pairs a badge with the condition that earns it.
type BadgeRule struct {
	Info     BadgeInfo
	Eligible Predicate
}

// AtLeast is satisfied when the named counter is >= min.
func AtLeast(stat Stat, min int64) Predicate {
	return func(r StatRecord) bool { return r.Count(stat) >= min }
}

// EarningsAtLeast is satisfied when total earnings are >= min.
func EarningsAtLeast(min float64) Predicate {
	return func(r StatRecord) bool { return r.TotalEarnings >= min }
}
