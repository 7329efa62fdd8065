package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/metrics"
	"github.com/aquatracking/aquatracking/internal/notify"
	"github.com/aquatracking/aquatracking/internal/repository"
)

var rollupNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("aquatracking.daily_consumption"))

// RollupID is the identifier of the single rollup of homeID on date.
func RollupID(homeID, date string) string {
	return uuid.NewSHA1(rollupNamespace, []byte(homeID+"|"+date)).String()
}

// DailyService owns the DailyConsumption rollups: the aggregator that
// rebuilds them from measurements and the bookkeeping of the alerts the
// threshold evaluator raises against them.
type DailyService struct {
	repos    *repository.Repos
	alerts   *AlertService
	policy   config.Settings
	notifier notify.Notifier
	archiver Archiver
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

type DailyPatch struct {
	// A zero value clears the threshold.
	RecommendedLiters *float64 `json:"recommendedLiters" validate:"omitempty,gte=0"`
	LimitLiters       *float64 `json:"limitLiters" validate:"omitempty,gte=0"`
}

// Recompute rebuilds the rollup of homeID on date from every measurement
// whose start falls inside that home-local day and upserts it. Thresholds
// and alert references of an existing rollup are kept. When nothing changed
// the stored rollup is returned untouched.
func (s *DailyService) Recompute(ctx context.Context, homeID, date string) (*domain.DailyConsumption, error) {
	d, _, err := s.recompute(ctx, homeID, date)
	return d, err
}

func (s *DailyService) recompute(ctx context.Context, homeID, date string) (*domain.DailyConsumption, *domain.Home, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveRecompute(time.Since(started).Seconds()) }()

	home, err := s.lookupHome(ctx, homeID)
	if err != nil {
		return nil, nil, err
	}
	loc := home.Location(s.policy.DefaultLocation)
	from, err := time.ParseInLocation(domain.DateLayout, date, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("date %q: %w", date, domain.ErrValidation)
	}
	to := from.AddDate(0, 0, 1)

	ms, err := s.repos.Measurements.Find(ctx, docstore.Filter{"homeId": homeID})
	if err != nil {
		return nil, nil, err
	}
	total, bySensor, count := aggregate(ms, from, to)

	id := RollupID(homeID, date)
	d, err := s.repos.Daily.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		d = &domain.DailyConsumption{HomeID: homeID, Date: date, Alerts: []string{}}
		d.ID = id
		s.applyDefaults(d, home)
	case err != nil:
		return nil, nil, err
	case d.TotalLiters == total && d.MeasurementCount == count && sameBreakdown(d.BySensor, bySensor):
		return d, home, nil
	}

	d.TotalLiters = total
	d.BySensor = bySensor
	d.MeasurementCount = count
	d.Touch(s.now())
	if err := s.repos.Daily.Put(ctx, id, d); err != nil {
		return nil, nil, err
	}
	s.log.Debug().Str("home_id", homeID).Str("date", date).Float64("total_liters", total).Msg("rollup recomputed")
	return d, home, nil
}

// Refresh recomputes the rollup and then evaluates it against its thresholds.
func (s *DailyService) Refresh(ctx context.Context, homeID, date string) (*domain.DailyConsumption, []domain.Alert, error) {
	d, home, err := s.recompute(ctx, homeID, date)
	if err != nil {
		return nil, nil, err
	}
	alerts, err := s.EvaluateAndRecord(ctx, d, home)
	if err != nil {
		return nil, nil, err
	}
	return d, alerts, nil
}

// EvaluateAndRecord runs the threshold evaluator over d, upserts the
// resulting alerts in the ledger and references them from the rollup.
// Only alerts created by this call are sent to the notifier.
func (s *DailyService) EvaluateAndRecord(ctx context.Context, d *domain.DailyConsumption, home *domain.Home) ([]domain.Alert, error) {
	emitted := Evaluate(d, home)
	out := make([]domain.Alert, 0, len(emitted))
	changed := false
	for _, a := range emitted {
		stored, created, err := s.alerts.Raise(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
		if !d.HasAlert(stored.ID) {
			d.Alerts = append(d.Alerts, stored.ID)
			changed = true
		}
		if created {
			s.metrics.AlertRaised(stored.Type)
			if err := s.notifier.Notify(ctx, *stored); err != nil {
				s.log.Error().Err(err).Str("alert_id", stored.ID).Msg("alert notification failed")
			}
		}
	}
	if changed {
		d.Touch(s.now())
		if err := s.repos.Daily.Put(ctx, d.ID, d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *DailyService) FindAll(ctx context.Context, f docstore.Filter) ([]domain.DailyConsumption, error) {
	out, err := s.repos.Daily.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].HomeID < out[j].HomeID
	})
	return out, nil
}

func (s *DailyService) FindOne(ctx context.Context, id string) (*domain.DailyConsumption, error) {
	return s.repos.Daily.Get(ctx, id)
}

func (s *DailyService) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	return s.repos.Daily.Count(ctx, f)
}

// UpdateThresholds changes the rollup limits and re-evaluates it.
func (s *DailyService) UpdateThresholds(ctx context.Context, id string, p DailyPatch) (*domain.DailyConsumption, error) {
	d, err := updateExisting(ctx, s.repos.Daily, id, s.now(), func(d *domain.DailyConsumption) error {
		if p.RecommendedLiters != nil {
			d.RecommendedLiters = positiveOrNil(*p.RecommendedLiters)
		}
		if p.LimitLiters != nil {
			d.LimitLiters = positiveOrNil(*p.LimitLiters)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	home, err := s.lookupHome(ctx, d.HomeID)
	if err != nil {
		return nil, err
	}
	if _, err := s.EvaluateAndRecord(ctx, d, home); err != nil {
		return nil, err
	}
	return d, nil
}

// Purge is the administrative delete of a rollup. With an archiver
// configured the rollup is archived first and kept if archiving fails.
func (s *DailyService) Purge(ctx context.Context, id string) error {
	d, err := s.repos.Daily.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveDaily(ctx, d); err != nil {
			return fmt.Errorf("archive rollup %s: %w", id, err)
		}
	}
	return s.repos.Daily.Delete(ctx, id)
}

// lookupHome returns nil without error for a home that does not exist;
// homeId is a logical reference the aggregator does not enforce.
func (s *DailyService) lookupHome(ctx context.Context, homeID string) (*domain.Home, error) {
	home, err := s.repos.Homes.Get(ctx, homeID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return home, err
}

func (s *DailyService) applyDefaults(d *domain.DailyConsumption, home *domain.Home) {
	if home == nil || home.Members < 1 {
		return
	}
	members := float64(home.Members)
	if r := s.policy.RecommendedLitersPerPerson; r > 0 {
		d.RecommendedLiters = positiveOrNil(r * members)
	}
	if l := s.policy.LimitLitersPerPerson; l > 0 {
		d.LimitLiters = positiveOrNil(l * members)
	}
}

// aggregate sums liters of the measurements starting in [from, to), per
// sensor and overall. Sums use decimals so the total equals the sum of the
// per-sensor entries regardless of the order measurements arrive in.
func aggregate(ms []domain.Measurement, from, to time.Time) (float64, []domain.SensorLiters, int) {
	sums := make(map[string]decimal.Decimal)
	total := decimal.Zero
	count := 0
	for _, m := range ms {
		if m.StartTime.Before(from) || !m.StartTime.Before(to) {
			continue
		}
		l := decimal.NewFromFloat(m.Liters)
		sums[m.SensorID] = sums[m.SensorID].Add(l)
		total = total.Add(l)
		count++
	}

	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bySensor := make([]domain.SensorLiters, 0, len(ids))
	for _, id := range ids {
		bySensor = append(bySensor, domain.SensorLiters{SensorID: id, Liters: sums[id].InexactFloat64()})
	}
	return total.InexactFloat64(), bySensor, count
}

func sameBreakdown(a, b []domain.SensorLiters) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func positiveOrNil(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
