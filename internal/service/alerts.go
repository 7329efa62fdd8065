package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
)

// AlertService is the alert ledger.
type AlertService struct {
	repos *repository.Repos
	now   func() time.Time
}

// AlertQuery combines the ledger read predicates; every set field is ANDed.
type AlertQuery struct {
	HomeID         string
	Type           string
	Resolved       *bool
	UnresolvedOnly bool
}

func (q AlertQuery) filter() docstore.Filter {
	f := docstore.Filter{}
	if q.HomeID != "" {
		f["homeId"] = q.HomeID
	}
	if q.Type != "" {
		f["type"] = q.Type
	}
	if q.Resolved != nil {
		f["resolved"] = *q.Resolved
	}
	if q.UnresolvedOnly {
		f["resolved"] = false
	}
	return f
}

type AlertPatch struct {
	HomeID      *string    `json:"homeId" validate:"omitempty,min=1"`
	Type        *string    `json:"type" validate:"omitempty,min=1"`
	Message     *string    `json:"message"`
	TriggeredAt *time.Time `json:"triggeredAt"`
	Resolved    *bool      `json:"resolved"`
}

// Create records an operator alert.
func (s *AlertService) Create(ctx context.Context, a *domain.Alert) (*domain.Alert, error) {
	now := s.now()
	if a.TriggeredAt.IsZero() {
		a.TriggeredAt = now
	}
	if a.Source == "" {
		a.Source = domain.AlertSourceOperator
	}
	a.ResolvedAt = nil
	if a.Resolved {
		a.ResolvedAt = &now
	}
	if err := insertNew(ctx, s.repos.Alerts, a, now); err != nil {
		return nil, err
	}
	return a, nil
}

// Raise upserts a system alert under its deterministic id. A new alert is
// stamped and inserted (created=true). An existing one only has its message
// refreshed, its resolution state and trigger time are left alone.
func (s *AlertService) Raise(ctx context.Context, a domain.Alert) (*domain.Alert, bool, error) {
	now := s.now()
	cur, err := s.repos.Alerts.Get(ctx, a.ID)
	if errors.Is(err, domain.ErrNotFound) {
		a.TriggeredAt = now
		a.Resolved = false
		a.CreatedAt = time.Time{}
		a.Touch(now)
		err = s.repos.Alerts.Insert(ctx, a.ID, &a)
		if err == nil {
			return &a, true, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, false, err
		}
		// lost the insert race; fall through to the update path
		cur, err = s.repos.Alerts.Get(ctx, a.ID)
	}
	if err != nil {
		return nil, false, err
	}
	if cur.Message == a.Message {
		return cur, false, nil
	}
	cur.Message = a.Message
	cur.Touch(now)
	if err := s.repos.Alerts.Replace(ctx, cur.ID, cur); err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

// FindAll returns the matching alerts, most recently triggered first.
func (s *AlertService) FindAll(ctx context.Context, q AlertQuery) ([]domain.Alert, error) {
	out, err := s.repos.Alerts.Find(ctx, q.filter())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out, nil
}

func (s *AlertService) FindOne(ctx context.Context, id string) (*domain.Alert, error) {
	return s.repos.Alerts.Get(ctx, id)
}

func (s *AlertService) Count(ctx context.Context, q AlertQuery) (int64, error) {
	return s.repos.Alerts.Count(ctx, q.filter())
}

// Update is the generic partial update. It may set or clear resolved.
func (s *AlertService) Update(ctx context.Context, id string, p AlertPatch) (*domain.Alert, error) {
	now := s.now()
	return updateExisting(ctx, s.repos.Alerts, id, now, func(a *domain.Alert) error {
		setIf(&a.HomeID, p.HomeID)
		setIf(&a.Type, p.Type)
		setIf(&a.Message, p.Message)
		setIf(&a.TriggeredAt, p.TriggeredAt)
		if p.Resolved != nil {
			setResolved(a, *p.Resolved, now)
		}
		return nil
	})
}

// Resolve marks the alert resolved. Resolving twice keeps the first time.
func (s *AlertService) Resolve(ctx context.Context, id string) (*domain.Alert, error) {
	now := s.now()
	return updateExisting(ctx, s.repos.Alerts, id, now, func(a *domain.Alert) error {
		setResolved(a, true, now)
		return nil
	})
}

func (s *AlertService) Remove(ctx context.Context, id string) error {
	return s.repos.Alerts.Delete(ctx, id)
}

func setResolved(a *domain.Alert, resolved bool, now time.Time) {
	switch {
	case resolved && !a.Resolved:
		a.Resolved, a.ResolvedAt = true, &now
	case !resolved:
		a.Resolved, a.ResolvedAt = false, nil
	}
}
