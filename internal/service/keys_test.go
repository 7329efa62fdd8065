package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
)

// slowStore widens the gap between reads and writes, as a networked
// backend would.
type slowStore struct {
	docstore.Store
	delay time.Duration
}

func (s slowStore) Get(ctx context.Context, collection, id string, out any) error {
	time.Sleep(s.delay)
	return s.Store.Get(ctx, collection, id, out)
}

func (s slowStore) Find(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	time.Sleep(s.delay)
	return s.Store.Find(ctx, collection, filter, out)
}

func (s slowStore) Insert(ctx context.Context, collection, id string, doc any) error {
	time.Sleep(s.delay)
	return s.Store.Insert(ctx, collection, id, doc)
}

// concurrently runs create n times at once and counts the outcomes.
func concurrently(t *testing.T, n int, create func() error) (succeeded, conflicts int) {
	t.Helper()
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := create()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return succeeded, conflicts
}

func TestSectors_ConcurrentCreateKeepsOne(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServicesOn(t, slowStore{Store: docstore.NewMemory(), delay: 10 * time.Millisecond}, nil)

	ok, conflicts := concurrently(t, 6, func() error {
		_, err := svcs.Sectors.Create(ctx, &domain.Sector{Name: "Norte", AprName: "APR"})
		return err
	})
	if ok != 1 || conflicts != 5 {
		t.Errorf("expected 1 success and 5 conflicts, got %d and %d", ok, conflicts)
	}
	if n, _ := svcs.Sectors.Count(ctx, nil); n != 1 {
		t.Errorf("expected 1 stored sector, got %d", n)
	}
}

func TestUsers_ConcurrentCreateKeepsOne(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServicesOn(t, slowStore{Store: docstore.NewMemory(), delay: 10 * time.Millisecond}, nil)

	ok, conflicts := concurrently(t, 4, func() error {
		_, err := svcs.Users.Create(ctx, &domain.User{Name: "Ana", Rut: "11.111.111-1", Email: "ana@example.com"}, "")
		return err
	})
	if ok != 1 || conflicts != 3 {
		t.Errorf("expected 1 success and 3 conflicts, got %d and %d", ok, conflicts)
	}
	if n, _ := svcs.Users.Count(ctx, nil); n != 1 {
		t.Errorf("expected 1 stored user, got %d", n)
	}
	// the losers left no reservation behind
	if n, _ := svcs.Repos.Keys.Count(ctx, nil); n != 2 {
		t.Errorf("expected 2 key reservations, got %d", n)
	}
}

func TestSectors_SameNameDifferentCase(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServices(t, nil)

	if _, err := svcs.Sectors.Create(ctx, &domain.Sector{Name: "Norte", AprName: "APR Malloa"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svcs.Sectors.Create(ctx, &domain.Sector{Name: " norte", AprName: "apr malloa"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestKeys_RenameAndRemoveFreeTheKey(t *testing.T) {
	ctx := context.Background()
	svcs := newTestServices(t, nil)

	sec, err := svcs.Sectors.Create(ctx, &domain.Sector{Name: "Sur", AprName: "APR"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svcs.Sectors.Update(ctx, sec.ID, SectorPatch{Name: ptr("Este")}); err != nil {
		t.Fatal(err)
	}
	if _, err := svcs.Sectors.Create(ctx, &domain.Sector{Name: "Sur", AprName: "APR"}); err != nil {
		t.Errorf("old name should be free after rename: %v", err)
	}
	if _, err := svcs.Sectors.Create(ctx, &domain.Sector{Name: "Este", AprName: "APR"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("new name should be taken, got %v", err)
	}

	u, err := svcs.Users.Create(ctx, &domain.User{Name: "Ana", Rut: "11111111-1", Email: "ana@example.com"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svcs.Users.Update(ctx, u.ID, UserPatch{Email: ptr("ana.p@example.com")}); err != nil {
		t.Fatal(err)
	}
	if _, err := svcs.Users.Create(ctx, &domain.User{Name: "Otra", Rut: "22222222-2", Email: "ana@example.com"}, ""); err != nil {
		t.Errorf("old email should be free after update: %v", err)
	}
	if err := svcs.Users.Remove(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svcs.Users.Create(ctx, &domain.User{Name: "Ana", Rut: "11111111-1", Email: "ana.p@example.com"}, ""); err != nil {
		t.Errorf("keys should be free after remove: %v", err)
	}
}

func TestKeys_AbandonedReservation(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{"old reservation is taken over", 2 * time.Hour, nil},
		{"recent reservation may still be in flight", time.Second, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svcs := newTestServices(t, nil)

			sec := &domain.Sector{Name: "Norte", AprName: "APR"}
			k := sectorKey(sec)
			ghost := &domain.UniqueKey{Kind: k.kind, Value: k.value, Owner: "never-stored"}
			ghost.ID = k.id()
			ghost.Touch(testNow.Add(-tt.age))
			if err := svcs.Repos.Keys.Put(ctx, ghost.ID, ghost); err != nil {
				t.Fatal(err)
			}

			created, err := svcs.Sectors.Create(ctx, sec)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err == nil {
				got, _ := svcs.Repos.Keys.Get(ctx, ghost.ID)
				if got == nil || got.Owner != created.ID {
					t.Errorf("reservation should belong to %s, got %+v", created.ID, got)
				}
			}
		})
	}
}
