package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"tourneykit/authz"
	"tourneykit/core"
	"tourneykit/engine"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type ctxKey int

const (
	userKey ctxKey = iota
	actorKey
	metricKey
)

// userIDCtx normalizes the {id} path parameter.
func userIDCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := core.NormalizeUserID(core.UserID(chi.URLParam(r, "id")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func userFrom(r *http.Request) core.UserID {
	u, _ := r.Context().Value(userKey).(core.UserID)
	return u
}

var tournamentStats = map[string]core.Stat{
	"joined":  core.StatTournamentsJoined,
	"won":     core.StatTournamentsWon,
	"created": core.StatTournamentsCreated,
}

func (s *server) listBadges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"badges": s.svc.Catalog().Badges()})
}

// deriveBadges evaluates a posted stat record. Malformed bodies evaluate as
// an empty record.
func (s *server) deriveBadges(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "could not read request body", nil)
		return
	}
	var stats core.StatRecord
	if err := json.Unmarshal(body, &stats); err != nil {
		stats = core.StatRecord{}
	}
	writeJSON(w, s.svc.Evaluate(&stats))
}

func (s *server) listRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"roles": core.Roles})
}

func (s *server) assignableRoles(w http.ResponseWriter, r *http.Request) {
	actor, err := s.svc.Profile(r.Context(), actorFrom(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	roles := s.svc.Authorizer().AssignableRoles(authz.Actor{Role: actor.Role, Email: actor.Email})
	if roles == nil {
		roles = []core.Role{}
	}
	writeJSON(w, map[string]any{"actor": actor.UserID, "roles": roles})
}

func (s *server) getProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Profile(r.Context(), userFrom(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, view)
}

func (s *server) getProfileBadges(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Profile(r.Context(), userFrom(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, engine.Evaluation{BadgeIDs: view.BadgeIDs, Badges: view.Badges})
}

func (s *server) registerIdentity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "expected {\"email\": ...}", nil)
		return
	}
	if err := s.svc.SetIdentity(r.Context(), actorFrom(r), userFrom(r), body.Email); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *server) recordTournament(w http.ResponseWriter, r *http.Request) {
	stat, ok := tournamentStats[chi.URLParam(r, "kind")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown tournament counter", nil)
		return
	}
	delta := int64(1)
	if raw := r.URL.Query().Get("delta"); raw != "" {
		d, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_delta", "delta must be an integer", nil)
			return
		}
		delta = d
	}
	up, err := s.svc.RecordStat(r.Context(), userFrom(r), stat, delta)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, up)
}

func (s *server) recordEarnings(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be a number", nil)
		return
	}
	up, err := s.svc.RecordEarnings(r.Context(), userFrom(r), amount)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, up)
}

func (s *server) grantBadge(w http.ResponseWriter, r *http.Request) {
	badge := core.BadgeID(chi.URLParam(r, "badge"))
	if err := core.ValidateBadgeID(badge); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_badge", err.Error(), nil)
		return
	}
	if err := s.svc.GrantBadge(r.Context(), userFrom(r), badge); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// requestedRole keeps unrecognized values so the authorizer can deny them
// with a reason instead of a validation error.
func requestedRole(r *http.Request) core.Role {
	raw := r.URL.Query().Get("role")
	if role, err := core.ParseRole(raw); err == nil {
		return role
	}
	return core.Role(raw)
}

func (s *server) canAssignRole(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.CanAssignRole(r.Context(), actorFrom(r), userFrom(r), requestedRole(r))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, d)
}

func (s *server) assignRole(w http.ResponseWriter, r *http.Request) {
	role := requestedRole(r)
	d, err := s.svc.AssignRole(r.Context(), actorFrom(r), userFrom(r), role)
	if errors.Is(err, engine.ErrRoleAssignmentDenied) {
		writeError(w, http.StatusForbidden, "role_assignment_denied", err.Error(), d)
		return
	}
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"user_id": userFrom(r), "role": role, "decision": d})
}

// serviceError maps validation sentinels to 400 and everything else to 500.
func (s *server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownStat),
		errors.Is(err, engine.ErrInvalidDelta),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, engine.ErrRoleAssignmentDenied):
		writeError(w, http.StatusForbidden, "role_assignment_denied", err.Error(), nil)
	case errors.Is(err, engine.ErrIdentityDenied):
		writeError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, engine.ErrReservedEmail):
		writeError(w, http.StatusForbidden, "reserved_email", err.Error(), nil)
	default:
		s.internalError(w, err)
	}
}

func (s *server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
}
