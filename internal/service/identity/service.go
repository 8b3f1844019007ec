package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Service reads the identity directory and freezes actors into
// snapshots at entity-creation time. Lookups are cached briefly to
// bound read amplification; the snapshots themselves are immutable and
// never refreshed from the cache or the directory.
type Service struct {
	users repository.UserRepository
	cache *cache.Cache
}

func NewService(users repository.UserRepository) *Service {
	return &Service{
		users: users,
		cache: cache.New(cacheTTL, cacheCleanup),
	}
}

// Lookup fetches a directory user, via the short-lived cache.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*model.DirectoryUser, error) {
	if cached, ok := s.cache.Get(id.String()); ok {
		return cached.(*model.DirectoryUser), nil
	}

	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	s.cache.Set(id.String(), user, cache.DefaultExpiration)
	return user, nil
}

// Snapshot builds an immutable copy of the user's public attributes.
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (model.Snapshot, error) {
	user, err := s.Lookup(ctx, id)
	if err != nil {
		return model.Snapshot{}, err
	}
	return user.ToSnapshot(), nil
}

// Role returns the directory role for an entity.
func (s *Service) Role(ctx context.Context, id uuid.UUID) (model.Role, error) {
	user, err := s.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
