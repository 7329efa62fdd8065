package service

import (
	"context"
	"time"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
)

// MeasurementService is the append-only measurement log. Measurements are
// never updated or deleted.
type MeasurementService struct {
	repos *repository.Repos
	now   func() time.Time
}

func (s *MeasurementService) Create(ctx context.Context, m *domain.Measurement) (*domain.Measurement, error) {
	if m.Unit == "" {
		m.Unit = "L"
	}
	if m.DurationSec == 0 && m.EndTime.After(m.StartTime) {
		m.DurationSec = m.EndTime.Sub(m.StartTime).Seconds()
	}
	if err := insertNew(ctx, s.repos.Measurements, m, s.now()); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MeasurementService) FindAll(ctx context.Context, f docstore.Filter) ([]domain.Measurement, error) {
	return s.repos.Measurements.Find(ctx, f)
}

func (s *MeasurementService) FindOne(ctx context.Context, id string) (*domain.Measurement, error) {
	return s.repos.Measurements.Get(ctx, id)
}

func (s *MeasurementService) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	return s.repos.Measurements.Count(ctx, f)
}
