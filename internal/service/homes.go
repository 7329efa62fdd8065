package service

import (
	"context"
	"time"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
)

type HomeService struct {
	repos *repository.Repos
	now   func() time.Time
}

type HomePatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	Address  *string `json:"address" validate:"omitempty,min=1"`
	SectorID *string `json:"sectorId" validate:"omitempty,min=1"`
	OwnerID  *string `json:"ownerId"`
	Active   *bool   `json:"active"`
	Members  *int    `json:"members" validate:"omitempty,min=1"`
	Timezone *string `json:"timezone" validate:"omitempty,iana_tz"`
}

func (s *HomeService) Create(ctx context.Context, h *domain.Home) (*domain.Home, error) {
	if err := insertNew(ctx, s.repos.Homes, h, s.now()); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HomeService) FindAll(ctx context.Context, f docstore.Filter) ([]domain.Home, error) {
	return s.repos.Homes.Find(ctx, f)
}

func (s *HomeService) FindOne(ctx context.Context, id string) (*domain.Home, error) {
	return s.repos.Homes.Get(ctx, id)
}

func (s *HomeService) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	return s.repos.Homes.Count(ctx, f)
}

func (s *HomeService) Update(ctx context.Context, id string, p HomePatch) (*domain.Home, error) {
	return updateExisting(ctx, s.repos.Homes, id, s.now(), func(h *domain.Home) error {
		setIf(&h.Name, p.Name)
		setIf(&h.Address, p.Address)
		setIf(&h.SectorID, p.SectorID)
		setIf(&h.OwnerID, p.OwnerID)
		setIf(&h.Active, p.Active)
		setIf(&h.Members, p.Members)
		setIf(&h.Timezone, p.Timezone)
		return nil
	})
}

func (s *HomeService) Remove(ctx context.Context, id string) error {
	return s.repos.Homes.Delete(ctx, id)
}

// setIf copies *src into dst when the patch carries the field.
func setIf[V any](dst *V, src *V) {
	if src != nil {
		*dst = *src
	}
}
