package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mem "tourneykit/adapters/memory"
	"tourneykit/analytics"
	"tourneykit/authz"
	"tourneykit/badges"
	"tourneykit/core"
	"tourneykit/engine"
	"tourneykit/leaderboard"
	"tourneykit/metrics"
)

const (
	testSecret     = "test-secret"
	testSuperAdmin = "owner@example.com"
)

func newTestService(t *testing.T) *engine.Service {
	t.Helper()
	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewService(mem.New(), bus, badges.Default(), authz.New(testSuperAdmin))
	ctx := context.Background()
	if err := svc.Bootstrap(ctx, "owner", testSuperAdmin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return svc
}

func do(t *testing.T, h http.Handler, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, user core.UserID) map[string]string {
	t.Helper()
	tok, err := IssueActorToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return map[string]string{actorHeader: tok}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRecordTournamentEarnsBadges(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodPost, "/api/users/alice/tournaments/won?delta=3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	up := decode[engine.Update](t, rec)
	if up.Total != 3 || len(up.Earned) != 2 {
		t.Fatalf("unexpected update: %+v", up)
	}

	rec = do(t, handler, http.MethodGet, "/api/users/alice/badges", "", nil)
	ev := decode[engine.Evaluation](t, rec)
	if len(ev.BadgeIDs) != 2 || ev.BadgeIDs[0] != badges.FirstVictory || ev.BadgeIDs[1] != badges.Champion {
		t.Fatalf("unexpected badges: %+v", ev.BadgeIDs)
	}
}

func TestRecordTournamentValidation(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{})

	cases := []struct {
		target string
		code   int
	}{
		{"/users/alice/tournaments/won?delta=bad", http.StatusBadRequest},
		{"/users/alice/tournaments/won?delta=0", http.StatusBadRequest},
		{"/users/alice/tournaments/lost", http.StatusNotFound},
		{"/users/alice/earnings?amount=abc", http.StatusBadRequest},
		{"/users/alice/earnings?amount=-5", http.StatusBadRequest},
		{"/users/alice/badges/%20", http.StatusBadRequest},
		{"/users/%20/tournaments/joined", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, handler, http.MethodPost, tc.target, "", nil)
		if rec.Code != tc.code {
			t.Errorf("%s: expected %d, got %d", tc.target, tc.code, rec.Code)
		}
		if got := decode[apiError](t, rec); got.Code == "" {
			t.Errorf("%s: expected error code in body", tc.target)
		}
	}
}

func TestEarningsAndGrantedBadge(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{})

	rec := do(t, handler, http.MethodPost, "/users/bob/earnings?amount=1000", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodPost, "/users/bob/badges/beta_tester", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	view := decode[engine.ProfileView](t, do(t, handler, http.MethodGet, "/users/bob", "", nil))
	if len(view.BadgeIDs) != 2 || view.BadgeIDs[0] != badges.Earner || view.BadgeIDs[1] != "beta_tester" {
		t.Fatalf("unexpected badge ids: %v", view.BadgeIDs)
	}
	// beta_tester is not in the catalog so only earner has metadata
	if len(view.Badges) != 1 || view.Badges[0].ID != badges.Earner {
		t.Fatalf("unexpected badges: %+v", view.Badges)
	}
}

func TestGetUnknownUser(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{PathPrefix: "/api"})

	rec := do(t, handler, http.MethodGet, "/api/users/unknown", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	view := decode[engine.ProfileView](t, rec)
	if view.Role != core.RolePlayer || len(view.BadgeIDs) != 0 {
		t.Fatalf("unexpected profile: %+v", view)
	}
}

func TestDeriveEndpoint(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{})

	rec := do(t, handler, http.MethodPost, "/badges/derive", `{"tournamentsJoined": 10, "total_earnings": "5000", "existing_badge_ids": ["mvp", " "]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ev := decode[engine.Evaluation](t, rec)
	want := []core.BadgeID{badges.FirstTournament, badges.TournamentVeteran, badges.TournamentMaster, badges.Earner, badges.BigEarner, "mvp"}
	if len(ev.BadgeIDs) != len(want) {
		t.Fatalf("want %v, got %v", want, ev.BadgeIDs)
	}
	for i := range want {
		if ev.BadgeIDs[i] != want[i] {
			t.Fatalf("want %v, got %v", want, ev.BadgeIDs)
		}
	}

	rec = do(t, handler, http.MethodPost, "/badges/derive", `{not json`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed body should evaluate as empty, got %d", rec.Code)
	}
	if ev := decode[engine.Evaluation](t, rec); len(ev.BadgeIDs) != 0 {
		t.Fatalf("expected no badges, got %v", ev.BadgeIDs)
	}
}

func TestCatalogAndRoles(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{})

	cat := decode[map[string][]core.BadgeInfo](t, do(t, handler, http.MethodGet, "/badges", "", nil))
	if len(cat["badges"]) != badges.Default().Len() {
		t.Fatalf("unexpected catalog: %+v", cat)
	}
	roles := decode[map[string][]core.Role](t, do(t, handler, http.MethodGet, "/roles", "", nil))
	if len(roles["roles"]) != len(core.Roles) {
		t.Fatalf("unexpected roles: %+v", roles)
	}
}

func TestRoleAssignmentFlow(t *testing.T) {
	svc := newTestService(t)
	handler := NewMux(svc, nil, Options{JWTSecret: testSecret})

	// no token
	rec := do(t, handler, http.MethodPut, "/users/carol/role?role=vip", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// forged token
	forged, _ := IssueActorToken("other-secret", "owner", time.Hour)
	rec = do(t, handler, http.MethodPut, "/users/carol/role?role=vip", "", map[string]string{actorHeader: forged})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}

	// player actor is denied
	rec = do(t, handler, http.MethodPut, "/users/carol/role?role=vip", "", token(t, "dave"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	denied := decode[apiError](t, rec)
	if denied.Code != "role_assignment_denied" {
		t.Fatalf("unexpected error: %+v", denied)
	}

	// super-admin makes erin an admin
	rec = do(t, handler, http.MethodPut, "/users/erin/role?role=admin", "", token(t, "owner"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// erin can grant vip but not admin
	d := decode[authz.Decision](t, do(t, handler, http.MethodGet, "/users/carol/role/assignable?role=vip", "", token(t, "erin")))
	if !d.Allowed {
		t.Fatalf("expected allowed, got %+v", d)
	}
	d = decode[authz.Decision](t, do(t, handler, http.MethodGet, "/users/carol/role/assignable?role=admin", "", token(t, "erin")))
	if d.Allowed || d.Reason != authz.ReasonNotSuperAdmin {
		t.Fatalf("expected not_super_admin, got %+v", d)
	}
	rec = do(t, handler, http.MethodPut, "/users/carol/role?role=admin", "", token(t, "erin"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodPut, "/users/carol/role?role=overlord", "", token(t, "erin"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown role, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodPut, "/users/carol/role?role=VIP", "", token(t, "erin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	view, err := svc.Profile(context.Background(), "carol")
	if err != nil {
		t.Fatal(err)
	}
	if view.Role != core.RoleVIP {
		t.Fatalf("expected vip, got %s", view.Role)
	}

	assignable := decode[map[string]any](t, do(t, handler, http.MethodGet, "/roles/assignable", "", token(t, "erin")))
	if roles, _ := assignable["roles"].([]any); len(roles) != len(core.Roles)-1 {
		t.Fatalf("unexpected assignable roles: %+v", assignable)
	}
}

func TestActorTokenFromCookie(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{JWTSecret: testSecret})
	tok, err := IssueActorToken(testSecret, "owner", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/users/carol/role/assignable?role=admin", nil)
	req.AddCookie(&http.Cookie{Name: actorCookie, Value: tok})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if d := decode[authz.Decision](t, rec); !d.Allowed {
		t.Fatalf("super-admin should be allowed: %+v", d)
	}
}

func TestExpiredActorToken(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{JWTSecret: testSecret})
	tok, err := IssueActorToken(testSecret, "owner", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	rec := do(t, handler, http.MethodGet, "/roles/assignable", "", map[string]string{actorHeader: tok})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestNoSecretRejectsTokens(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{})
	rec := do(t, handler, http.MethodGet, "/roles/assignable", "", token(t, "owner"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if _, err := IssueActorToken("", "owner", time.Hour); err == nil {
		t.Fatal("expected error issuing without a secret")
	}
}

func TestIdentityRegistration(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{JWTSecret: testSecret})
	rec := do(t, handler, http.MethodPost, "/users/frank/identity", `{"email":"Frank@Example.com"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodPost, "/users/frank/identity", `{"email":"Frank@Example.com"}`, token(t, "frank"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	view := decode[engine.ProfileView](t, do(t, handler, http.MethodGet, "/users/frank", "", nil))
	if view.Email != "frank@example.com" {
		t.Fatalf("unexpected email: %q", view.Email)
	}
	rec = do(t, handler, http.MethodPost, "/users/frank/identity", `{"email":"not-an-email"}`, token(t, "frank"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// another player may not change frank's identity
	rec = do(t, handler, http.MethodPost, "/users/frank/identity", `{"email":"gina@example.com"}`, token(t, "gina"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if e := decode[apiError](t, rec); e.Code != "forbidden" {
		t.Fatalf("unexpected error: %+v", e)
	}

	// an admin may
	rec = do(t, handler, http.MethodPost, "/users/frank/identity", `{"email":"frank@corp.example.com"}`, token(t, "owner"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestAdminCannotClaimSuperAdminEmail(t *testing.T) {
	svc := newTestService(t)
	handler := NewMux(svc, nil, Options{JWTSecret: testSecret})

	rec := do(t, handler, http.MethodPut, "/users/mallory/role?role=admin", "", token(t, "owner"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := `{"email":"` + testSuperAdmin + `"}`
	rec = do(t, handler, http.MethodPost, "/users/mallory/identity", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodPost, "/users/mallory/identity", body, token(t, "mallory"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decode[apiError](t, rec); e.Code != "reserved_email" {
		t.Fatalf("unexpected error: %+v", e)
	}
	// admins cannot set it on someone else either
	rec = do(t, handler, http.MethodPost, "/users/eve/identity", body, token(t, "mallory"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodPut, "/users/eve/role?role=admin", "", token(t, "mallory"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	view, err := svc.Profile(context.Background(), "eve")
	if err != nil {
		t.Fatal(err)
	}
	if view.Role != core.RolePlayer {
		t.Fatalf("eve escalated to %s", view.Role)
	}
	mallory, err := svc.Profile(context.Background(), "mallory")
	if err != nil {
		t.Fatal(err)
	}
	if mallory.Email != "" {
		t.Fatalf("mallory email changed to %q", mallory.Email)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{
		PathPrefix:      "/api",
		APIKeys:         []string{"secret"},
		AllowCORSOrigin: "*",
	})

	rec := do(t, handler, http.MethodGet, "/api/users/alice", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodGet, "/api/users/alice", "", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header")
	}

	rec = do(t, handler, http.MethodOptions, "/api/users/alice", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight should not need a key, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{
		PathPrefix:       "/api",
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	rec := do(t, handler, http.MethodGet, "/api/users/alice", "", map[string]string{"X-API-Key": "k"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 first request, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodGet, "/api/users/alice", "", map[string]string{"X-API-Key": "k"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestHealthAndRequestMetrics(t *testing.T) {
	m := metrics.NewMock()
	handler := NewMux(newTestService(t), nil, Options{Metrics: m})

	rec := do(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[map[string]any](t, rec); got["status"] != "healthy" {
		t.Fatalf("unexpected health: %+v", got)
	}
	do(t, handler, http.MethodGet, "/nowhere", "", nil)

	_, requests := m.Snapshot()
	if requests["GET /healthz"] != 1 {
		t.Fatalf("expected healthz request recorded, got %v", requests)
	}
	if requests["unmatched"] != 1 {
		t.Fatalf("expected unmatched request recorded, got %v", requests)
	}
}

func TestLeaderboardRoutes(t *testing.T) {
	st := leaderboard.NewStandings()
	svc := newTestService(t)
	handler := NewMux(svc, nil, Options{Standings: st})
	ctx := context.Background()
	st.OnEvent(ctx, core.NewStatsRecorded("alice", core.StatTournamentsWon, 2, 2))
	st.OnEvent(ctx, core.NewStatsRecorded("bob", core.StatTournamentsWon, 4, 4))

	rec := do(t, handler, http.MethodGet, "/leaderboards/tournaments_won?limit=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	top := decode[struct {
		Metric  leaderboard.Metric  `json:"metric"`
		Entries []leaderboard.Entry `json:"entries"`
	}](t, rec)
	if top.Metric != leaderboard.MetricWon || len(top.Entries) != 1 || top.Entries[0].User != "bob" || top.Entries[0].Rank != 1 {
		t.Fatalf("unexpected top: %+v", top)
	}

	rec = do(t, handler, http.MethodGet, "/leaderboards/tournaments_won/users/Alice", "", nil)
	pos := decode[struct {
		Entry leaderboard.Entry `json:"entry"`
	}](t, rec)
	if rec.Code != http.StatusOK || pos.Entry.Rank != 2 || pos.Entry.Score != 2 {
		t.Fatalf("unexpected position %d: %+v", rec.Code, pos)
	}

	if rec := do(t, handler, http.MethodGet, "/leaderboards/total_earnings/users/alice", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unranked user: expected 404, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodGet, "/leaderboards/kills", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown metric: expected 404, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodGet, "/leaderboards/tournaments_won?limit=0", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodGet, "/leaderboards", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("list metrics: expected 200, got %d", rec.Code)
	}
}

func TestLeaderboardRoutesDisabledWithoutStandings(t *testing.T) {
	handler := NewMux(newTestService(t), nil, Options{})
	if rec := do(t, handler, http.MethodGet, "/leaderboards", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAnalyticsRoute(t *testing.T) {
	tr := analytics.NewTracker()
	handler := NewMux(newTestService(t), nil, Options{Analytics: tr})
	ts := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	ev := core.NewBadgeEarned("alice", "champion")
	ev.Time = ts
	tr.OnEvent(context.Background(), ev)

	rec := do(t, handler, http.MethodGet, "/analytics?day=2026-05-04", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Day               analytics.DaySummary   `json:"day"`
		WeeklyActiveUsers int                    `json:"weekly_active_users"`
		TopBadges         []analytics.BadgeCount `json:"top_badges"`
	}](t, rec)
	if body.Day.ActiveUsers != 1 || body.Day.BadgesEarned != 1 || body.WeeklyActiveUsers != 1 || len(body.TopBadges) != 1 {
		t.Fatalf("unexpected summary: %+v", body)
	}

	if rec := do(t, handler, http.MethodGet, "/analytics?day=yesterday", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
