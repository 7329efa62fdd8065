package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aquatracking/aquatracking/internal/cache"
	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/metrics"
	"github.com/aquatracking/aquatracking/internal/notify"
	"github.com/aquatracking/aquatracking/internal/repository"
)

// Archiver keeps a copy of a rollup before it is purged.
type Archiver interface {
	ArchiveDaily(ctx context.Context, d *domain.DailyConsumption) error
}

// Deps are the collaborators the services are built from. Only Store is
// required; everything else has a working zero value.
type Deps struct {
	Store    docstore.Store
	Policy   config.Settings
	Notifier notify.Notifier
	Archiver Archiver
	Cache    cache.Cache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	Logger   *zerolog.Logger
	Clock    func() time.Time
}

type Services struct {
	Repos        *repository.Repos
	Homes        *HomeService
	Sectors      *SectorService
	Sensors      *SensorService
	Users        *UserService
	Measurements *MeasurementService
	Daily        *DailyService
	Alerts       *AlertService
	Pipeline     *Pipeline
	Dashboard    *DashboardService
}

func New(d Deps) *Services {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Policy.DefaultLocation == nil {
		d.Policy.DefaultLocation = time.UTC
	}
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.Multi{}
	}
	logger := log.Logger
	if d.Logger != nil {
		logger = *d.Logger
	}

	repos := repository.New(d.Store)
	alerts := &AlertService{repos: repos, now: d.Clock}
	daily := &DailyService{
		repos:    repos,
		alerts:   alerts,
		policy:   d.Policy,
		notifier: d.Notifier,
		archiver: d.Archiver,
		metrics:  d.Metrics,
		log:      logger.With().Str("component", "aggregator").Logger(),
		now:      d.Clock,
	}
	measurements := &MeasurementService{repos: repos, now: d.Clock}
	keys := &keyLedger{repos: repos, now: d.Clock, log: logger.With().Str("component", "keys").Logger()}

	return &Services{
		Repos:        repos,
		Homes:        &HomeService{repos: repos, now: d.Clock},
		Sectors:      &SectorService{repos: repos, keys: keys, now: d.Clock},
		Sensors:      &SensorService{repos: repos, now: d.Clock},
		Users:        &UserService{repos: repos, keys: keys, now: d.Clock},
		Measurements: measurements,
		Daily:        daily,
		Alerts:       alerts,
		Pipeline: &Pipeline{
			repos:        repos,
			measurements: measurements,
			daily:        daily,
			policy:       d.Policy,
			metrics:      d.Metrics,
			log:          logger.With().Str("component", "pipeline").Logger(),
		},
		Dashboard: &DashboardService{
			repos: repos,
			cache: d.Cache,
			ttl:   d.CacheTTL,
			loc:   d.Policy.DefaultLocation,
			now:   d.Clock,
			log:   logger.With().Str("component", "dashboard").Logger(),
		},
	}
}

// document is satisfied by pointers to every domain entity.
type document[T any] interface {
	*T
	Meta() *domain.Base
}

// insertNew assigns a fresh id and timestamps, then inserts the document.
func insertNew[T any, P document[T]](ctx context.Context, col *repository.Collection[T], doc P, now time.Time) error {
	return insertAs(ctx, col, uuid.NewString(), doc, now)
}

// insertAs inserts the document under id, stamped as created at now.
func insertAs[T any, P document[T]](ctx context.Context, col *repository.Collection[T], id string, doc P, now time.Time) error {
	b := doc.Meta()
	b.ID = id
	b.CreatedAt = time.Time{}
	b.Touch(now)
	return col.Insert(ctx, b.ID, (*T)(doc))
}

// updateExisting loads id, applies the mutation and replaces the document.
// The id and creation time cannot be changed by apply.
func updateExisting[T any, P document[T]](ctx context.Context, col *repository.Collection[T], id string, now time.Time, apply func(P) error) (P, error) {
	var zero P
	cur, err := col.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	doc := P(cur)
	orig := *doc.Meta()
	if err := apply(doc); err != nil {
		return zero, err
	}
	b := doc.Meta()
	b.ID, b.CreatedAt = orig.ID, orig.CreatedAt
	b.Touch(now)
	if err := col.Replace(ctx, id, cur); err != nil {
		return zero, err
	}
	return doc, nil
}
