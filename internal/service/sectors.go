package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
)

type SectorService struct {
	repos *repository.Repos
	keys  *keyLedger
	now   func() time.Time
}

type SectorPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	AprName     *string `json:"aprName" validate:"omitempty,min=1"`
	Region      *string `json:"region"`
	Description *string `json:"description"`
}

// Create rejects a sector whose (name, aprName) pair is already taken.
// Names are compared case-insensitively and without surrounding blanks.
func (s *SectorService) Create(ctx context.Context, sec *domain.Sector) (*domain.Sector, error) {
	id := uuid.NewString()
	claimed, err := s.keys.reserve(ctx, id, sectorKey(sec))
	if err != nil {
		return nil, err
	}
	if err := insertAs(ctx, s.repos.Sectors, id, sec, s.now()); err != nil {
		s.keys.release(ctx, id, claimed...)
		return nil, err
	}
	return sec, nil
}

func (s *SectorService) FindAll(ctx context.Context, f docstore.Filter) ([]domain.Sector, error) {
	return s.repos.Sectors.Find(ctx, f)
}

func (s *SectorService) FindOne(ctx context.Context, id string) (*domain.Sector, error) {
	return s.repos.Sectors.Get(ctx, id)
}

func (s *SectorService) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	return s.repos.Sectors.Count(ctx, f)
}

// Update moves the (name, aprName) reservation when either changes.
func (s *SectorService) Update(ctx context.Context, id string, p SectorPatch) (*domain.Sector, error) {
	var claimed, vacated []naturalKey
	sec, err := updateExisting(ctx, s.repos.Sectors, id, s.now(), func(sec *domain.Sector) error {
		before := sectorKey(sec)
		setIf(&sec.Name, p.Name)
		setIf(&sec.AprName, p.AprName)
		setIf(&sec.Region, p.Region)
		setIf(&sec.Description, p.Description)
		after := sectorKey(sec)
		if after == before {
			return nil
		}
		var err error
		if claimed, err = s.keys.reserve(ctx, id, after); err != nil {
			return err
		}
		vacated = []naturalKey{before}
		return nil
	})
	if err != nil {
		s.keys.release(ctx, id, claimed...)
		return nil, err
	}
	s.keys.release(ctx, id, vacated...)
	return sec, nil
}

func (s *SectorService) Remove(ctx context.Context, id string) error {
	sec, err := s.repos.Sectors.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Sectors.Delete(ctx, id); err != nil {
		return err
	}
	s.keys.release(ctx, id, sectorKey(sec))
	return nil
}
