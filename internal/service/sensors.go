package service

import (
	"context"
	"time"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
)

type SensorService struct {
	repos *repository.Repos
	now   func() time.Time
}

type SensorPatch struct {
	Name        *string    `json:"name" validate:"omitempty,min=1"`
	Serial      *string    `json:"serial" validate:"omitempty,min=1"`
	HomeID      *string    `json:"homeId" validate:"omitempty,min=1"`
	Type        *string    `json:"type" validate:"omitempty,oneof=flow meter"`
	Location    *string    `json:"location"`
	Active      *bool      `json:"active"`
	InstalledAt *time.Time `json:"installedAt"`
}

func (s *SensorService) Create(ctx context.Context, sn *domain.Sensor) (*domain.Sensor, error) {
	if err := insertNew(ctx, s.repos.Sensors, sn, s.now()); err != nil {
		return nil, err
	}
	return sn, nil
}

func (s *SensorService) FindAll(ctx context.Context, f docstore.Filter) ([]domain.Sensor, error) {
	return s.repos.Sensors.Find(ctx, f)
}

func (s *SensorService) FindOne(ctx context.Context, id string) (*domain.Sensor, error) {
	return s.repos.Sensors.Get(ctx, id)
}

func (s *SensorService) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	return s.repos.Sensors.Count(ctx, f)
}

func (s *SensorService) Update(ctx context.Context, id string, p SensorPatch) (*domain.Sensor, error) {
	return updateExisting(ctx, s.repos.Sensors, id, s.now(), func(sn *domain.Sensor) error {
		setIf(&sn.Name, p.Name)
		setIf(&sn.Serial, p.Serial)
		setIf(&sn.HomeID, p.HomeID)
		setIf(&sn.Type, p.Type)
		setIf(&sn.Location, p.Location)
		setIf(&sn.Active, p.Active)
		if p.InstalledAt != nil {
			sn.InstalledAt = p.InstalledAt
		}
		return nil
	})
}

func (s *SensorService) Remove(ctx context.Context, id string) error {
	return s.repos.Sensors.Delete(ctx, id)
}
