package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-record-service/internal/domain/user"
	apperrors "user-record-service/pkg/errors"
	"user-record-service/pkg/security"
)

// UserRepoPG stores user records through GORM. Every insert and update is
// normalized and validated here first, so no write path skips the rules.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
// Email carries no unique index.
type UserSchema struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Email     string    `gorm:"not null"`
	Password  string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// AutoMigrate creates or updates the users table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserSchema{})
}

// prepare trims and validates u before it is written.
func (r *UserRepoPG) prepare(u *user.User) error {
	if u == nil {
		return errors.New("user cannot be nil")
	}

	u.Normalize()
	if err := u.Validate(); err != nil {
		r.log.Warn("user record rejected", zap.Int64("id", u.ID), zap.Error(err))
		return err
	}
	return nil
}

// Create validates and inserts a new user. On success u carries the
// assigned ID and timestamps.
func (r *UserRepoPG) Create(ctx context.Context, u *user.User) (int64, error) {
	if err := r.prepare(u); err != nil {
		return 0, err
	}

	model := UserSchema{
		Email:    u.Email,
		Password: u.Password,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		r.log.Error("failed to create user in db", zap.Error(err))
		return 0, apperrors.NewInternalError("failed to create user", err)
	}

	u.ID = model.ID
	u.CreatedAt = model.CreatedAt
	u.UpdatedAt = model.UpdatedAt

	r.log.Info("user created in db", zap.Int64("id", model.ID))
	return model.ID, nil
}

// Update validates u and overwrites the stored email and password.
func (r *UserRepoPG) Update(ctx context.Context, u *user.User) (int64, error) {
	if u != nil && u.ID <= 0 {
		return 0, apperrors.NewValidationError("id", "invalid user id")
	}
	if err := r.prepare(u); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&UserSchema{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"email":      u.Email,
			"password":   u.Password,
			"updated_at": now,
		})
	if res.Error != nil {
		r.log.Error("failed to update user in db", zap.Error(res.Error), zap.Int64("id", u.ID))
		return 0, apperrors.NewInternalError("failed to update user", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("user not found for update", zap.Int64("id", u.ID))
		return 0, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", u.ID))
	}

	u.UpdatedAt = now

	r.log.Info("user updated in db", zap.Int64("id", u.ID))
	return u.ID, nil
}

// Delete removes a user from the database by ID.
func (r *UserRepoPG) Delete(ctx context.Context, id int64) (int64, error) {
	if id <= 0 {
		return 0, apperrors.NewValidationError("id", "invalid user id")
	}

	res := r.db.WithContext(ctx).Delete(&UserSchema{}, id)
	if res.Error != nil {
		r.log.Error("failed to delete user in db", zap.Error(res.Error), zap.Int64("id", id))
		return 0, apperrors.NewInternalError("failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("user not found for delete", zap.Int64("id", id))
		return 0, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
	}

	r.log.Info("user deleted in db", zap.Int64("id", id))
	return id, nil
}

// GetByID retrieves a user from the database by their unique ID.
func (r *UserRepoPG) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Warn("user not found", zap.Int64("id", id))
			return nil, apperrors.NewNotFoundError("user", fmt.Sprintf("user not found: id=%d", id))
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, apperrors.NewInternalError("failed to get user", err)
	}

	return toDomain(model), nil
}

// List returns one page of users whose email contains query, ignoring case,
// together with the total number of matches.
func (r *UserRepoPG) List(ctx context.Context, query string, page, limit int64) ([]user.User, int64, error) {
	term, err := security.ValidateSearchQuery(query)
	if err != nil {
		r.log.Warn("invalid search query", zap.String("query", query), zap.Error(err))
		return nil, 0, apperrors.NewValidationError("query", "invalid search query: "+err.Error())
	}

	scoped := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&UserSchema{})
		if term != "" {
			pattern := "%" + strings.ToLower(security.SanitizeSearchString(term)) + "%"
			tx = tx.Where("LOWER(email) LIKE ? ESCAPE '\\'", pattern)
		}
		return tx
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		r.log.Error("failed to count users", zap.Error(err), zap.String("query", term))
		return nil, 0, apperrors.NewInternalError("failed to list users", err)
	}

	// offsets past math.MaxInt wrap negative and gorm would drop the clause
	if limit > 0 && page-1 > int64(math.MaxInt)/limit {
		r.log.Debug("page beyond addressable rows", zap.Int64("page", page), zap.Int64("limit", limit))
		return []user.User{}, total, nil
	}

	var models []UserSchema
	if err := scoped().Order("id").Offset(int((page - 1) * limit)).Limit(int(limit)).Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err), zap.String("query", term), zap.Int64("page", page), zap.Int64("limit", limit))
		return nil, 0, apperrors.NewInternalError("failed to list users", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = *toDomain(model)
	}

	return users, total, nil
}

func toDomain(model UserSchema) *user.User {
	return &user.User{
		ID:        model.ID,
		Email:     model.Email,
		Password:  model.Password,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
