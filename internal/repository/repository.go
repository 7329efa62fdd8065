package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
)

// Collection names, also used as DynamoDB table suffixes.
const (
	ColHomes        = "homes"
	ColSectors      = "sectors"
	ColSensors      = "sensors"
	ColUsers        = "users"
	ColMeasurements = "measurements"
	ColDaily        = "daily_consumption"
	ColAlerts       = "alerts"
	ColKeys         = "unique_keys"
)

// AllCollections lists every collection the repositories use.
var AllCollections = []string{ColHomes, ColSectors, ColSensors, ColUsers, ColMeasurements, ColDaily, ColAlerts, ColKeys}

type Repos struct {
	Homes        *Collection[domain.Home]
	Sectors      *Collection[domain.Sector]
	Sensors      *Collection[domain.Sensor]
	Users        *Collection[domain.User]
	Measurements *Collection[domain.Measurement]
	Daily        *Collection[domain.DailyConsumption]
	Alerts       *Collection[domain.Alert]
	Keys         *Collection[domain.UniqueKey]
}

func New(store docstore.Store) *Repos {
	return &Repos{
		Homes:        &Collection[domain.Home]{store: store, name: ColHomes},
		Sectors:      &Collection[domain.Sector]{store: store, name: ColSectors},
		Sensors:      &Collection[domain.Sensor]{store: store, name: ColSensors},
		Users:        &Collection[domain.User]{store: store, name: ColUsers},
		Measurements: &Collection[domain.Measurement]{store: store, name: ColMeasurements},
		Daily:        &Collection[domain.DailyConsumption]{store: store, name: ColDaily},
		Alerts:       &Collection[domain.Alert]{store: store, name: ColAlerts},
		Keys:         &Collection[domain.UniqueKey]{store: store, name: ColKeys},
	}
}

// Collection is a typed view over one collection of the document store.
// Storage sentinels are translated into the domain error taxonomy.
type Collection[T any] struct {
	store docstore.Store
	name  string
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) Insert(ctx context.Context, id string, doc *T) error {
	return c.wrap(id, c.store.Insert(ctx, c.name, id, doc))
}

func (c *Collection[T]) Put(ctx context.Context, id string, doc *T) error {
	return c.wrap(id, c.store.Put(ctx, c.name, id, doc))
}

func (c *Collection[T]) Replace(ctx context.Context, id string, doc *T) error {
	return c.wrap(id, c.store.Replace(ctx, c.name, id, doc))
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	var out T
	if err := c.store.Get(ctx, c.name, id, &out); err != nil {
		return nil, c.wrap(id, err)
	}
	return &out, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.wrap(id, c.store.Delete(ctx, c.name, id))
}

func (c *Collection[T]) Find(ctx context.Context, filter docstore.Filter) ([]T, error) {
	var out []T
	if err := c.store.Find(ctx, c.name, filter, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (c *Collection[T]) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	n, err := c.store.Count(ctx, c.name, filter)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.name, err)
	}
	return n, nil
}

func (c *Collection[T]) wrap(id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%s %s: %w", c.name, id, domain.ErrNotFound)
	case errors.Is(err, docstore.ErrDuplicate):
		return fmt.Errorf("%s %s: %w", c.name, id, domain.ErrConflict)
	default:
		return fmt.Errorf("%s %s: %w", c.name, id, err)
	}
}
