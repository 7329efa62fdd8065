package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
	"github.com/aquatracking/aquatracking/internal/validate"
)

type UserService struct {
	repos *repository.Repos
	keys  *keyLedger
	now   func() time.Time
}

type UserPatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	Rut      *string `json:"rut" validate:"omitempty,rut"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin operator resident"`
	HomeID   *string `json:"homeId"`
	Active   *bool   `json:"active"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

// Create stores a user with a normalised RUT and email and a bcrypt hash of
// password. RUT and email are unique across users.
func (s *UserService) Create(ctx context.Context, u *domain.User, password string) (*domain.User, error) {
	u.Rut = validate.NormalizeRut(u.Rut)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if password != "" {
		hash, err := hashPassword(password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	id := uuid.NewString()
	claimed, err := s.keys.reserve(ctx, id, userKeys(u)...)
	if err != nil {
		return nil, err
	}
	if err := insertAs(ctx, s.repos.Users, id, u, s.now()); err != nil {
		s.keys.release(ctx, id, claimed...)
		return nil, err
	}
	return u, nil
}

func (s *UserService) FindAll(ctx context.Context, f docstore.Filter) ([]domain.User, error) {
	return s.repos.Users.Find(ctx, f)
}

func (s *UserService) FindOne(ctx context.Context, id string) (*domain.User, error) {
	return s.repos.Users.Get(ctx, id)
}

func (s *UserService) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	return s.repos.Users.Count(ctx, f)
}

// Update moves the RUT and email reservations of the fields that change.
func (s *UserService) Update(ctx context.Context, id string, p UserPatch) (*domain.User, error) {
	var claimed, vacated []naturalKey
	u, err := updateExisting(ctx, s.repos.Users, id, s.now(), func(u *domain.User) error {
		before := userKeys(u)
		setIf(&u.Name, p.Name)
		setIf(&u.Phone, p.Phone)
		setIf(&u.Role, p.Role)
		setIf(&u.HomeID, p.HomeID)
		setIf(&u.Active, p.Active)
		if p.Rut != nil {
			u.Rut = validate.NormalizeRut(*p.Rut)
		}
		if p.Email != nil {
			u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
		}
		var moved []naturalKey
		for i, k := range userKeys(u) {
			if k != before[i] {
				moved = append(moved, k)
				vacated = append(vacated, before[i])
			}
		}
		var err error
		if claimed, err = s.keys.reserve(ctx, id, moved...); err != nil {
			return err
		}
		if p.Password != nil {
			hash, err := hashPassword(*p.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		s.keys.release(ctx, id, claimed...)
		return nil, err
	}
	s.keys.release(ctx, id, vacated...)
	return u, nil
}

func (s *UserService) Remove(ctx context.Context, id string) error {
	u, err := s.repos.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Users.Delete(ctx, id); err != nil {
		return err
	}
	s.keys.release(ctx, id, userKeys(u)...)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(u *domain.User, password string) bool {
	return u.PasswordHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
