package user

import (
	"context"

	"go.uber.org/zap"

	domain "user-record-service/internal/domain/user"
	apperrors "user-record-service/pkg/errors"
	"user-record-service/pkg/logger"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// Repository defines the interface for user data access operations.
// Implementations must normalize and validate records on Create and Update.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (int64, error)                               // Create a new user
	GetByID(ctx context.Context, id int64) (*domain.User, error)                             // Retrieve user by ID
	Update(ctx context.Context, u *domain.User) (int64, error)                               // Update existing user
	Delete(ctx context.Context, id int64) (int64, error)                                     // Delete user by ID
	List(ctx context.Context, query string, page, limit int64) ([]domain.User, int64, error) // List users with total count
}

// Usecase implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type Usecase struct {
	repo Repository  // Repository for data access
	log  *zap.Logger // Logger for structured logging
}

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Usecase {
	return &Usecase{repo: r, log: log}
}

// logWriteError logs caller mistakes at warn level and everything else at error level.
func logWriteError(log *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if apperrors.IsUserInput(err) {
		log.Warn(msg, fields...)
		return
	}
	log.Error(msg, fields...)
}

// CreateUser stores a new user record. The repository rejects records that
// fail the required-field or email format rules.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", logger.MaskedEmail("email", in.Email))

	id, err := uc.repo.Create(ctx, &domain.User{
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		logWriteError(log, "failed to create user", err)
		return nil, err
	}

	return &CreateUserResponse{ID: id}, nil
}

// UpdateUser applies a partial update on top of the stored record. The merged
// record is validated again before it is written.
func (uc *Usecase) UpdateUser(ctx context.Context, in UpdateUserRequest) (*UpdateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.Int64("id", in.ID), zap.Bool("email_set", in.Email != nil), zap.Bool("password_set", in.Password != nil))

	if in.ID <= 0 {
		log.Warn("update user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, apperrors.NewValidationError("id", "invalid user id")
	}
	if in.Email == nil && in.Password == nil {
		log.Warn("update user validation failed", zap.Int64("id", in.ID), zap.String("reason", "empty update"))
		return nil, apperrors.NewValidationError("", "no fields to update")
	}

	existing, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		logWriteError(log, "failed to load user for update", err, zap.Int64("id", in.ID))
		return nil, err
	}

	if in.Email != nil {
		existing.Email = *in.Email
	}
	if in.Password != nil {
		existing.Password = *in.Password
	}

	id, err := uc.repo.Update(ctx, existing)
	if err != nil {
		logWriteError(log, "failed to update user", err, zap.Int64("id", in.ID))
		return nil, err
	}

	return &UpdateUserResponse{ID: id}, nil
}

// DeleteUser deletes a user after validating the user ID.
func (uc *Usecase) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", in.ID))

	if in.ID <= 0 {
		log.Warn("delete user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, apperrors.NewValidationError("id", "invalid user id")
	}

	id, err := uc.repo.Delete(ctx, in.ID)
	if err != nil {
		logWriteError(log, "failed to delete user", err, zap.Int64("id", in.ID))
		return nil, err
	}

	return &DeleteUserResponse{ID: id}, nil
}

// GetUser retrieves a user by ID.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.ID <= 0 {
		log.Warn("get user validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, apperrors.NewValidationError("id", "invalid user id")
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		logWriteError(log, "failed to get user", err, zap.Int64("id", in.ID))
		return nil, err
	}

	return &GetUserResponse{User: toDTO(u)}, nil
}

// ListUsers retrieves a paginated list of users with optional email search.
func (uc *Usecase) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	if in.Page <= 0 {
		in.Page = defaultPage
	}
	if in.Limit <= 0 {
		in.Limit = defaultLimit
	}
	if in.Limit > maxLimit {
		in.Limit = maxLimit
	}

	log := logger.WithContext(ctx, uc.log)
	log.Info("listing users", zap.String("query", in.Query), zap.Int64("page", in.Page), zap.Int64("limit", in.Limit))

	domainUsers, total, err := uc.repo.List(ctx, in.Query, in.Page, in.Limit)
	if err != nil {
		logWriteError(log, "failed to list users", err, zap.String("query", in.Query), zap.Int64("page", in.Page), zap.Int64("limit", in.Limit))
		return nil, err
	}

	users := make([]User, len(domainUsers))
	for i := range domainUsers {
		users[i] = toDTO(&domainUsers[i])
	}

	p := domain.NewPagination(total, in.Page, in.Limit)
	return &ListUsersResponse{
		Users: users,
		Pagination: &Pagination{
			Total:      p.Total,
			Page:       p.Page,
			Limit:      p.Limit,
			TotalPages: p.TotalPages,
		},
	}, nil
}

// ValidateUser checks a candidate record against the write-time rules
// without storing it.
func (uc *Usecase) ValidateUser(ctx context.Context, in ValidateUserRequest) (*ValidateUserResponse, error) {
	u := domain.User{Email: in.Email, Password: in.Password}
	u.Normalize()

	if err := u.Validate(); err != nil {
		logger.WithContext(ctx, uc.log).Debug("candidate user rejected", logger.MaskedEmail("email", u.Email), zap.Error(err))
		return nil, err
	}

	return &ValidateUserResponse{Email: u.Email}, nil
}

func toDTO(u *domain.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
