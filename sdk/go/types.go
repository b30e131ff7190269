package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tourneykit/authz"
	"tourneykit/core"
	"tourneykit/leaderboard"
)

// Profile mirrors the JSON surface of GET /users/{id}.
type Profile struct {
	core.Profile
	BadgeIDs []core.BadgeID   `json:"badge_ids"`
	Badges   []core.BadgeInfo `json:"badges"`
}

// Evaluation is a derived badge set with catalog metadata.
type Evaluation struct {
	BadgeIDs []core.BadgeID   `json:"badge_ids"`
	Badges   []core.BadgeInfo `json:"badges"`
}

// Update is returned by the counter endpoints.
type Update struct {
	Total  float64        `json:"total"`
	Earned []core.BadgeID `json:"earned,omitempty"`
}

// Decision is a role assignment outcome.
type Decision = authz.Decision

// Entry is a ranked leaderboard position.
type Entry = leaderboard.Entry

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
	Time   time.Time      `json:"time"`
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int             `json:"-"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Decision decodes the details of a role_assignment_denied error.
func (e *APIError) Decision() (Decision, bool) {
	var d Decision
	if e.Code != "role_assignment_denied" || len(e.Details) == 0 {
		return d, false
	}
	if err := json.Unmarshal(e.Details, &d); err != nil {
		return d, false
	}
	return d, true
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
