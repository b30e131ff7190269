package httpapi

import (
	"net/http"
	"time"

	"tourneykit/analytics"
)

// analyticsSummary reports one day of activity, today by default, with the
// enclosing week and month active user counts.
func (s *server) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD", nil)
			return
		}
		day = parsed
	}
	week, month := analytics.WeekKey(day), analytics.MonthKey(day)
	writeJSON(w, map[string]any{
		"day":                  s.tracker.Day(analytics.DayKey(day)),
		"week":                 week,
		"weekly_active_users":  s.tracker.WeeklyActiveUsers(week),
		"month":                month,
		"monthly_active_users": s.tracker.MonthlyActiveUsers(month),
		"top_badges":           s.tracker.TopBadges(10),
	})
}
