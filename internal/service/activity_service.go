package service

import (
	"context"
	"time"

	"github.com/iatidata/sector-harvester/internal/config"
	"github.com/iatidata/sector-harvester/internal/model"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Listing cache lifetimes. Stored activities only change when a harvest runs.
const (
	listCacheExpiration = 30 * time.Second
	listCacheCleanup    = 5 * time.Minute
)

// ActivityReader reads harvested activities back from a store.
type ActivityReader interface {
	List(ctx context.Context, limit, offset int) ([]string, int, error)
	Get(ctx context.Context, identifier string) (*model.StoredActivity, error)
}

// ActivityPage is one page of stored identifiers.
type ActivityPage struct {
	Identifiers []string
	Total       int
}

// ActivityService serves stored activities to the read API.
type ActivityService struct {
	reader ActivityReader
	cache  *cache.Cache
	log    zerolog.Logger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(reader ActivityReader, log zerolog.Logger) *ActivityService {
	return &ActivityService{
		reader: reader,
		cache:  cache.New(listCacheExpiration, listCacheCleanup),
		log:    log.With().Str("component", "activity_service").Logger(),
	}
}

// List returns a page of stored identifiers. Pages are cached briefly.
func (s *ActivityService) List(ctx context.Context, page, perPage int) (*ActivityPage, error) {
	key := config.CacheKey.ActivityListKey(page, perPage)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*ActivityPage), nil
	}

	ids, total, err := s.reader.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list activities")
		return nil, err
	}

	result := &ActivityPage{Identifiers: ids, Total: total}
	s.cache.Set(key, result, cache.DefaultExpiration)
	return result, nil
}

// Get returns a single stored activity.
func (s *ActivityService) Get(ctx context.Context, identifier string) (*model.StoredActivity, error) {
	return s.reader.Get(ctx, identifier)
}
