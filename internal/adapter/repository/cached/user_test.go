package cached

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"user-record-service/internal/adapter/cache"
	domain "user-record-service/internal/domain/user"
	apperrors "user-record-service/pkg/errors"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, u *domain.User) (int64, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, u *domain.User) (int64, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) Delete(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) {
	args := m.Called(ctx, query, page, limit)
	return args.Get(0).([]domain.User), args.Get(1).(int64), args.Error(2)
}

func setup(t *testing.T) (*CachedUserRepository, *mockRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := zaptest.NewLogger(t)
	db := new(mockRepo)
	return NewCachedUserRepository(db, cache.NewRedisUserCache(client, time.Minute, log), log), db, mr
}

func TestGetByID_PopulatesCacheOnMiss(t *testing.T) {
	repo, db, mr := setup(t)
	ctx := context.Background()

	db.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Email: "a@b.com", Password: "x"}, nil).Once()

	first, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", first.Email)
	assert.True(t, mr.Exists("user:1"))

	second, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", second.Email)

	db.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestGetByID_ConcurrentMissesShareOneRead(t *testing.T) {
	repo, db, _ := setup(t)
	ctx := context.Background()

	release := make(chan time.Time)
	db.On("GetByID", ctx, int64(5)).
		WaitUntil(release).
		Return(&domain.User{ID: 5, Email: "c@d.io", Password: "x"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := repo.GetByID(ctx, 5)
			assert.NoError(t, err)
			assert.Equal(t, int64(5), u.ID)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, len(db.Calls), 2)
}

func TestGetByID_ReturnsCopies(t *testing.T) {
	repo, db, _ := setup(t)
	ctx := context.Background()

	db.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Email: "a@b.com", Password: "x"}, nil)

	u, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	u.Email = "mutated@b.com"

	again, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", again.Email)
}

func TestGetByID_NotFoundIsNotCached(t *testing.T) {
	repo, db, mr := setup(t)
	ctx := context.Background()

	db.On("GetByID", ctx, int64(2)).Return(nil, apperrors.NewNotFoundError("user", ""))

	_, err := repo.GetByID(ctx, 2)
	var nfErr *apperrors.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.False(t, mr.Exists("user:2"))
}

func TestGetByID_CacheErrorFallsBackToDatabase(t *testing.T) {
	repo, db, mr := setup(t)
	ctx := context.Background()

	mr.SetError("ERR injected failure")
	db.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Email: "a@b.com", Password: "x"}, nil)

	u, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
}

func TestUpdateAndDelete_InvalidateCache(t *testing.T) {
	repo, db, mr := setup(t)
	ctx := context.Background()

	db.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Email: "a@b.com", Password: "x"}, nil)
	_, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("user:1"))

	db.On("Update", ctx, mock.Anything).Return(int64(1), nil)
	_, err = repo.Update(ctx, &domain.User{ID: 1, Email: "n@b.com", Password: "x"})
	require.NoError(t, err)
	assert.False(t, mr.Exists("user:1"))

	_, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("user:1"))

	db.On("Delete", ctx, int64(1)).Return(int64(1), nil)
	_, err = repo.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, mr.Exists("user:1"))
}

func TestUpdate_FailureKeepsCache(t *testing.T) {
	repo, db, mr := setup(t)
	ctx := context.Background()

	db.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Email: "a@b.com", Password: "x"}, nil)
	_, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)

	db.On("Update", ctx, mock.Anything).Return(int64(0), apperrors.NewValidationError("email", domain.InvalidEmailMessage))
	_, err = repo.Update(ctx, &domain.User{ID: 1, Email: "bad", Password: "x"})
	require.Error(t, err)
	assert.True(t, mr.Exists("user:1"))
}

func TestWithoutCache(t *testing.T) {
	db := new(mockRepo)
	repo := NewCachedUserRepository(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	db.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Email: "a@b.com"}, nil)
	db.On("Create", ctx, mock.Anything).Return(int64(2), nil)
	db.On("List", ctx, "", int64(1), int64(10)).Return([]domain.User{}, int64(0), nil)

	_, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	id, err := repo.Create(ctx, &domain.User{Email: "b@c.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	_, total, err := repo.List(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
