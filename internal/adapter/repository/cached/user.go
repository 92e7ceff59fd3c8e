package cached

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-record-service/internal/adapter/cache"
	domain "user-record-service/internal/domain/user"
	"user-record-service/internal/usecase/user"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository (DB) and a cache implementation.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

// Create delegates to the DB repository. New records are cached on first read.
func (r *CachedUserRepository) Create(ctx context.Context, u *domain.User) (int64, error) {
	return r.dbRepo.Create(ctx, u)
}

// GetByID retrieves a user by ID using the cache-aside pattern.
func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err != nil {
			r.log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
		} else if cachedUser != nil {
			r.log.Debug("user retrieved from cache", zap.Int64("id", id))
			return cachedUser, nil
		}
	}

	// concurrent misses for the same id share one database read
	result, err, _ := r.group.Do(cache.Key(id), func() (any, error) {
		if r.cache != nil {
			cachedUser, err := r.cache.Get(ctx, id)
			if err == nil && cachedUser != nil {
				r.log.Debug("user retrieved from cache after single-flight wait", zap.Int64("id", id))
				return cachedUser, nil
			}
		}

		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if r.cache != nil {
			if err := r.cache.Set(ctx, u); err != nil {
				r.log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
			}
		}

		return u, nil
	})
	if err != nil {
		return nil, err
	}

	// callers may mutate the record; hand each one its own copy
	u := *result.(*domain.User)
	return &u, nil
}

// Update updates the user in DB and invalidates the cache.
func (r *CachedUserRepository) Update(ctx context.Context, u *domain.User) (int64, error) {
	id, err := r.dbRepo.Update(ctx, u)
	if err != nil {
		return 0, err
	}

	r.invalidate(ctx, id, "update")
	return id, nil
}

// Delete deletes the user from DB and invalidates the cache.
func (r *CachedUserRepository) Delete(ctx context.Context, id int64) (int64, error) {
	deletedID, err := r.dbRepo.Delete(ctx, id)
	if err != nil {
		return 0, err
	}

	r.invalidate(ctx, id, "delete")
	return deletedID, nil
}

// List delegates to the DB repository.
func (r *CachedUserRepository) List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) {
	return r.dbRepo.List(ctx, query, page, limit)
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id int64, op string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, id); err != nil {
		r.log.Warn("failed to invalidate cache", zap.String("op", op), zap.Int64("id", id), zap.Error(err))
	}
}
