package tourney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	mem "tourneykit/adapters/memory"
	"tourneykit/badges"
	"tourneykit/core"
	"tourneykit/engine"
	"tourneykit/integrations/webhook"
	"tourneykit/leaderboard"
	"tourneykit/metrics"
	"tourneykit/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	_, ch := hub.Subscribe(8)
	svc := New(
		WithRealtime(hub),
		WithStorage(mem.New()),
		WithDispatchMode(engine.DispatchSync),
	)

	up, err := svc.RecordStat(context.Background(), "alice", core.StatTournamentsJoined, 1)
	if err != nil || up.Total != 1 {
		t.Fatalf("record stat total=%v err=%v", up.Total, err)
	}

	first := <-ch
	if first.UserID != "alice" || first.Type != core.EventStatsRecorded {
		t.Fatalf("unexpected event: %+v", first)
	}
	second := <-ch
	if second.Type != core.EventBadgeEarned || second.Badge != badges.FirstTournament {
		t.Fatalf("unexpected event: %+v", second)
	}
}

func TestInMemoryDefault(t *testing.T) {
	svc := New(WithDispatchMode(engine.DispatchSync))
	if _, err := svc.RecordStat(context.Background(), "bob", core.StatTournamentsWon, 3); err != nil {
		t.Fatalf("record stat: %v", err)
	}
	view, err := svc.Profile(context.Background(), "bob")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if view.Stats.TournamentsWon != 3 || len(view.BadgeIDs) != 2 {
		t.Fatalf("unexpected profile: %+v", view)
	}
}

func TestNoSuperAdminMeansNobodyGrantsAdmin(t *testing.T) {
	store := mem.New()
	ctx := context.Background()
	if err := store.SetRole(ctx, "root", core.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	svc := New(WithStorage(store), WithDispatchMode(engine.DispatchSync))

	_, err := svc.AssignRole(ctx, "root", "carol", core.RoleAdmin)
	if !errors.Is(err, engine.ErrRoleAssignmentDenied) {
		t.Fatalf("expected denial, got %v", err)
	}

	svc = New(WithStorage(store), WithSuperAdmin("Root@Example.com"), WithDispatchMode(engine.DispatchSync))
	if err := store.SetEmail(ctx, "root", "root@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AssignRole(ctx, "root", "carol", core.RoleAdmin); err != nil {
		t.Fatalf("super-admin should grant admin: %v", err)
	}
}

func TestWebhookAndMetricsWiring(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	m := metrics.NewMock()
	svc := New(
		WithDispatchMode(engine.DispatchSync),
		WithWebhook(webhook.New([]string{srv.URL}, webhook.WithTypes(core.EventBadgeGranted))),
		WithMetrics(m),
	)
	if err := svc.GrantBadge(context.Background(), "dave", "beta_tester"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one webhook delivery, got %d", hits)
	}
	if m.BadgesGranted != 1 {
		t.Fatalf("expected granted metric, got %d", m.BadgesGranted)
	}
}

func TestStandingsFollowService(t *testing.T) {
	st := leaderboard.NewStandings()
	svc := New(WithStandings(st), WithDispatchMode(engine.DispatchSync))
	ctx := context.Background()

	if _, err := svc.RecordStat(ctx, "alice", core.StatTournamentsWon, 2); err != nil {
		t.Fatalf("record alice: %v", err)
	}
	if _, err := svc.RecordStat(ctx, "bob", core.StatTournamentsWon, 4); err != nil {
		t.Fatalf("record bob: %v", err)
	}
	if _, err := svc.RecordEarnings(ctx, "alice", 300); err != nil {
		t.Fatalf("record earnings: %v", err)
	}

	top, _ := st.Top(leaderboard.MetricWon, 5)
	if len(top) != 2 || top[0].User != "bob" || top[1].User != "alice" {
		t.Fatalf("unexpected wins board: %+v", top)
	}
	e, ok, _ := st.Position(leaderboard.MetricEarnings, "alice")
	if !ok || e.Score != 300 || e.Rank != 1 {
		t.Fatalf("unexpected earnings entry: %+v", e)
	}
}
