package redis

import (
	"context"
	"errors"
	"time"

	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
	"github.com/webmasters-learning/receipt-desk/pkg/logger"
)

// jsonStore is the subset of Cache used by DirectoryCache.
type jsonStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ jsonStore = (*Cache)(nil)

// DirectoryCache is a read-through cache for the student listing.
// Detail lookups always go to the service so fees are never stale.
// Cache errors are logged and never fail the request.
type DirectoryCache struct {
	source student.Source
	store  jsonStore
	key    string
	ttl    time.Duration
	logger *logger.Logger
}

var _ student.Source = (*DirectoryCache)(nil)

// NewDirectoryCache wraps source.
func NewDirectoryCache(source student.Source, cache *Cache, ttl time.Duration, log *logger.Logger) *DirectoryCache {
	return newDirectoryCache(source, cache, cache.Key(PrefixDirectory, "all"), ttl, log)
}

func newDirectoryCache(source student.Source, store jsonStore, key string, ttl time.Duration, log *logger.Logger) *DirectoryCache {
	if ttl <= 0 {
		ttl = TTLDirectoryCache
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DirectoryCache{
		source: source,
		store:  store,
		key:    key,
		ttl:    ttl,
		logger: log.With(logger.Component("directory_cache")),
	}
}

// ListStudents returns the cached listing or fetches and stores it.
// Failed fetches are never cached.
func (d *DirectoryCache) ListStudents(ctx context.Context) ([]student.Summary, error) {
	var cached []student.Summary
	err := d.store.Get(ctx, d.key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		d.logger.Warn("directory cache read failed", logger.Err(err))
	}

	list, err := d.source.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.store.Set(ctx, d.key, list, d.ttl); err != nil {
		d.logger.Warn("directory cache write failed", logger.Err(err))
	}
	return list, nil
}

// GetStudent passes through to the source.
func (d *DirectoryCache) GetStudent(ctx context.Context, id string) (*student.Detail, error) {
	return d.source.GetStudent(ctx, id)
}

// Invalidate drops the cached listing.
func (d *DirectoryCache) Invalidate(ctx context.Context) error {
	return d.store.Delete(ctx, d.key)
}
