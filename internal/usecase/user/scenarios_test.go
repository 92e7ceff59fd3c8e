package user

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"user-record-service/internal/adapter/db/postgres"
	apperrors "user-record-service/pkg/errors"
)

// setupStoredUsecase wires the use case to a real repository on in-memory SQLite.
func setupStoredUsecase(t *testing.T) *Usecase {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, postgres.AutoMigrate(db))

	log := zaptest.NewLogger(t)
	return New(postgres.NewUserRepoPG(db, log), log)
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		password     string
		wantRequired string // field expected in a RequiredFieldError
		wantMessage  string // message expected in a ValidationError
		wantStoredAs string
	}{
		{name: "valid record", email: "user@example.com", password: "secret", wantStoredAs: "user@example.com"},
		{name: "malformed email", email: "not-an-email", password: "secret", wantMessage: "Please enter a vaild email address"},
		{name: "empty email", email: "", password: "secret", wantRequired: "email"},
		{name: "empty password", email: "user@example.com", password: "", wantRequired: "password"},
		{name: "ipv4 literal", email: "a@[192.168.0.1]", password: "x", wantStoredAs: "a@[192.168.0.1]"},
		{name: "surrounding whitespace", email: "  a@b.com  ", password: "x", wantStoredAs: "a@b.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := setupStoredUsecase(t)
			ctx := context.Background()

			created, err := uc.CreateUser(ctx, CreateUserRequest{Email: tt.email, Password: tt.password})

			switch {
			case tt.wantRequired != "":
				var reqErr *apperrors.RequiredFieldError
				require.ErrorAs(t, err, &reqErr)
				assert.Equal(t, tt.wantRequired, reqErr.Field)
				assert.Nil(t, created)
			case tt.wantMessage != "":
				var valErr *apperrors.ValidationError
				require.ErrorAs(t, err, &valErr)
				assert.Equal(t, "email", valErr.Field)
				assert.Equal(t, tt.wantMessage, valErr.Message)
				assert.Nil(t, created)
			default:
				require.NoError(t, err)
				got, err := uc.GetUser(ctx, GetUserRequest{ID: created.ID})
				require.NoError(t, err)
				assert.Equal(t, tt.wantStoredAs, got.Email)
			}

			if tt.wantStoredAs == "" {
				list, err := uc.ListUsers(ctx, ListUsersRequest{})
				require.NoError(t, err)
				assert.Zero(t, list.Pagination.Total)
			}
		})
	}
}

func TestScenarios_UpdateRevalidates(t *testing.T) {
	uc := setupStoredUsecase(t)
	ctx := context.Background()

	created, err := uc.CreateUser(ctx, CreateUserRequest{Email: "user@example.com", Password: "secret"})
	require.NoError(t, err)

	_, err = uc.UpdateUser(ctx, UpdateUserRequest{ID: created.ID, Email: strPtr("still not an email")})
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)

	_, err = uc.UpdateUser(ctx, UpdateUserRequest{ID: created.ID, Email: strPtr("\tnew@example.com ")})
	require.NoError(t, err)

	got, err := uc.GetUser(ctx, GetUserRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
}
