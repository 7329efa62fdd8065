package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/notify"
)

var testNow = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

type captured struct {
	alerts []domain.Alert
}

func (c *captured) Notify(_ context.Context, a domain.Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func newTestServices(t *testing.T, n notify.Notifier) *Services {
	t.Helper()
	return newTestServicesOn(t, docstore.NewMemory(), n)
}

func newTestServicesOn(t *testing.T, store docstore.Store, n notify.Notifier) *Services {
	t.Helper()
	logger := zerolog.Nop()
	return New(Deps{
		Store:    store,
		Policy:   config.Settings{DefaultLocation: time.UTC},
		Notifier: n,
		Logger:   &logger,
		Clock:    func() time.Time { return testNow },
	})
}

func seedHome(t *testing.T, svcs *Services, id string, members int) *domain.Home {
	t.Helper()
	h := &domain.Home{Name: "Casa " + id, Address: "Calle 1", SectorID: "S", Active: true, Members: members}
	h.ID = id
	if err := svcs.Repos.Homes.Put(context.Background(), id, h); err != nil {
		t.Fatalf("seed home %s: %v", id, err)
	}
	return h
}

func measurement(homeID, sensorID string, start time.Time, liters float64) *domain.Measurement {
	return &domain.Measurement{
		SensorID:  sensorID,
		HomeID:    homeID,
		StartTime: start,
		EndTime:   start.Add(5 * time.Minute),
		Liters:    liters,
	}
}

func ptr[V any](v V) *V { return &v }
