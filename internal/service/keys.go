package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
)

var keyNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("aquatracking.unique_keys"))

const (
	keySector    = "sector"
	keyUserRut   = "user.rut"
	keyUserEmail = "user.email"

	// A reservation whose owner never appeared, or no longer carries the
	// key, is abandoned once it is this old and may be taken over.
	staleKeyAge = time.Minute
)

type naturalKey struct {
	kind  string
	value string
}

func (k naturalKey) id() string {
	return uuid.NewSHA1(keyNamespace, []byte(k.kind+"|"+k.value)).String()
}

func sectorKey(sec *domain.Sector) naturalKey {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return naturalKey{kind: keySector, value: norm(sec.Name) + "|" + norm(sec.AprName)}
}

func userKeys(u *domain.User) []naturalKey {
	return []naturalKey{{kind: keyUserRut, value: u.Rut}, {kind: keyUserEmail, value: u.Email}}
}

// keyLedger enforces natural-key uniqueness with one conditional insert per
// key, which every backend performs atomically.
type keyLedger struct {
	repos *repository.Repos
	now   func() time.Time
	log   zerolog.Logger
}

// reserve claims keys for owner, all or nothing, and returns the keys it
// newly claimed. Empty values are skipped. A key held by another document is
// a conflict.
func (l *keyLedger) reserve(ctx context.Context, owner string, keys ...naturalKey) ([]naturalKey, error) {
	var claimed []naturalKey
	for _, k := range keys {
		if k.value == "" {
			continue
		}
		created, err := l.claim(ctx, owner, k)
		if err != nil {
			l.release(ctx, owner, claimed...)
			return nil, err
		}
		if created {
			claimed = append(claimed, k)
		}
	}
	return claimed, nil
}

func (l *keyLedger) claim(ctx context.Context, owner string, k naturalKey) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		doc := &domain.UniqueKey{Kind: k.kind, Value: k.value, Owner: owner}
		doc.ID = k.id()
		doc.Touch(l.now())
		err := l.repos.Keys.Insert(ctx, doc.ID, doc)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return false, err
		}

		cur, err := l.repos.Keys.Get(ctx, doc.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// released in between; insert again
			continue
		case err != nil:
			return false, err
		case cur.Owner == owner:
			return false, nil
		}
		abandoned, err := l.abandoned(ctx, cur)
		if err != nil {
			return false, err
		}
		if !abandoned {
			break
		}
		l.log.Warn().Str("kind", k.kind).Str("value", k.value).Str("owner", cur.Owner).Msg("taking over abandoned key")
		if err := l.repos.Keys.Delete(ctx, cur.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
	}
	return false, fmt.Errorf("%s %q already taken: %w", k.kind, k.value, domain.ErrConflict)
}

// release drops the reservations of keys still held by owner. Failures are
// logged only; the leftover reservation becomes abandoned and is taken over
// by the next claim.
func (l *keyLedger) release(ctx context.Context, owner string, keys ...naturalKey) {
	for _, k := range keys {
		if k.value == "" {
			continue
		}
		cur, err := l.repos.Keys.Get(ctx, k.id())
		if err == nil && cur.Owner == owner {
			err = l.repos.Keys.Delete(ctx, cur.ID)
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			l.log.Warn().Err(err).Str("kind", k.kind).Str("value", k.value).Msg("key release failed")
		}
	}
}

// abandoned reports whether a reservation is old enough and its owner does
// not hold the key: the owner was never stored, or was renamed or deleted
// without the reservation being released.
func (l *keyLedger) abandoned(ctx context.Context, r *domain.UniqueKey) (bool, error) {
	if l.now().Sub(r.CreatedAt) < staleKeyAge {
		return false, nil
	}
	k := naturalKey{kind: r.Kind, value: r.Value}
	var held []naturalKey
	switch r.Kind {
	case keySector:
		sec, err := l.repos.Sectors.Get(ctx, r.Owner)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		if sec != nil {
			held = []naturalKey{sectorKey(sec)}
		}
	case keyUserRut, keyUserEmail:
		u, err := l.repos.Users.Get(ctx, r.Owner)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		if u != nil {
			held = userKeys(u)
		}
	}
	for _, h := range held {
		if h == k {
			return false, nil
		}
	}
	return true, nil
}
