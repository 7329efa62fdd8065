package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aquatracking/aquatracking/internal/domain"
)

func seedAlerts(t *testing.T, svcs *Services) []*domain.Alert {
	t.Helper()
	var out []*domain.Alert
	for i, a := range []domain.Alert{
		{HomeID: "H1", Type: domain.AlertLimitExceeded, Message: "oldest"},
		{HomeID: "H1", Type: "leak", Message: "middle"},
		{HomeID: "H2", Type: domain.AlertLimitExceeded, Message: "newest"},
	} {
		a := a
		a.TriggeredAt = testNow.Add(time.Duration(i) * time.Hour)
		created, err := svcs.Alerts.Create(context.Background(), &a)
		if err != nil {
			t.Fatalf("create alert: %v", err)
		}
		out = append(out, created)
	}
	return out
}

func TestAlerts_QueriesSortedNewestFirst(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServices(t, nil)
	seedAlerts(t, svcs)

	all, err := svcs.Alerts.FindAll(ctx, AlertQuery{})
	if err != nil {
		t.Fatal(err)
	}
	var msgs []string
	for _, a := range all {
		msgs = append(msgs, a.Message)
	}
	if len(msgs) != 3 || msgs[0] != "newest" || msgs[2] != "oldest" {
		t.Errorf("unexpected order %v", msgs)
	}

	tests := []struct {
		name string
		q    AlertQuery
		want int
	}{
		{"by home", AlertQuery{HomeID: "H1"}, 2},
		{"by type", AlertQuery{Type: domain.AlertLimitExceeded}, 2},
		{"home and type", AlertQuery{HomeID: "H1", Type: "leak"}, 1},
		{"unresolved", AlertQuery{UnresolvedOnly: true}, 3},
		{"unknown home", AlertQuery{HomeID: "nope"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svcs.Alerts.FindAll(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d, got %d", tt.want, len(got))
			}
			n, err := svcs.Alerts.Count(ctx, tt.q)
			if err != nil || n != int64(tt.want) {
				t.Errorf("count: expected %d, got %d (%v)", tt.want, n, err)
			}
		})
	}
}

func TestAlerts_ResolveLeavesUnresolvedView(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServices(t, nil)
	seeded := seedAlerts(t, svcs)
	target := seeded[0]

	resolved, err := svcs.Alerts.Resolve(ctx, target.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(testNow) {
		t.Errorf("unexpected resolved alert %+v", resolved)
	}

	open, _ := svcs.Alerts.FindAll(ctx, AlertQuery{UnresolvedOnly: true})
	for _, a := range open {
		if a.ID == target.ID {
			t.Error("resolved alert still listed as unresolved")
		}
	}
	if len(open) != 2 {
		t.Errorf("expected 2 unresolved, got %d", len(open))
	}

	for _, q := range []AlertQuery{{HomeID: "H1"}, {Type: domain.AlertLimitExceeded}} {
		got, _ := svcs.Alerts.FindAll(ctx, q)
		found := false
		for _, a := range got {
			found = found || a.ID == target.ID
		}
		if !found {
			t.Errorf("resolved alert missing from %+v", q)
		}
	}

	if _, err := svcs.Alerts.Resolve(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAlerts_UpdateCanReopen(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServices(t, nil)
	a := seedAlerts(t, svcs)[1]

	if _, err := svcs.Alerts.Update(ctx, a.ID, AlertPatch{Resolved: ptr(true)}); err != nil {
		t.Fatal(err)
	}
	got, err := svcs.Alerts.Update(ctx, a.ID, AlertPatch{Resolved: ptr(false), Message: ptr("still leaking")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Resolved || got.ResolvedAt != nil || got.Message != "still leaking" {
		t.Errorf("unexpected reopened alert %+v", got)
	}
	if got.Source != domain.AlertSourceOperator {
		t.Errorf("expected operator source, got %q", got.Source)
	}
}

func TestAlerts_RaiseKeepsResolution(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServices(t, nil)
	d := &domain.DailyConsumption{HomeID: "H1", Date: "2024-05-01", TotalLiters: 30, LimitLiters: ptr(25.0)}

	first, created, err := svcs.Alerts.Raise(ctx, Evaluate(d, nil)[0])
	if err != nil || !created {
		t.Fatalf("first raise: created=%v err=%v", created, err)
	}
	if _, err := svcs.Alerts.Resolve(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	d.TotalLiters = 40
	again, created, err := svcs.Alerts.Raise(ctx, Evaluate(d, nil)[0])
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second raise should not create a new alert")
	}
	if !again.Resolved {
		t.Error("raise must not reopen a resolved alert")
	}
	if again.Message == first.Message {
		t.Error("expected the message to be refreshed")
	}
}
