package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-record-service/internal/usecase/user"
	apperrors "user-record-service/pkg/errors"
	"user-record-service/pkg/logger"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Service
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Service, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// CreateUserRequest is the body of POST /v1/users. Field rules are enforced
// by the storage layer, not by binding tags.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest is the body of PUT /v1/users/:id. Omitted fields keep
// their stored value.
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// ValidateUserRequest is the body of POST /v1/users/validate.
type ValidateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IDResponse is returned by create, update and delete.
type IDResponse struct {
	ID int64 `json:"id"`
}

// ValidateUserResponse reports an accepted candidate record.
type ValidateUserResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email"`
}

// ListUsersResponse represents the HTTP response for listing users
type ListUsersResponse struct {
	Users      []UserResponse `json:"users"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

// Pagination represents pagination information
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	TotalPages int64 `json:"total_pages"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateUser handles POST /v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, IDResponse{ID: resp.ID})
}

// GetUser handles GET /v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(resp.User))
}

// UpdateUser handles PUT /v1/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID:       id,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, IDResponse{ID: resp.ID})
}

// DeleteUser handles DELETE /v1/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	resp, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, IDResponse{ID: resp.ID})
}

// ListUsers handles GET /v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	// unparsable page or limit falls back to the usecase defaults
	page, _ := strconv.ParseInt(c.Query("page"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)

	resp, err := h.uc.ListUsers(c.Request.Context(), user.ListUsersRequest{
		Query: c.Query("query"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = toUserResponse(u)
	}

	var pagination *Pagination
	if resp.Pagination != nil {
		pagination = &Pagination{
			Total:      resp.Pagination.Total,
			Page:       resp.Pagination.Page,
			Limit:      resp.Pagination.Limit,
			TotalPages: resp.Pagination.TotalPages,
		}
	}

	c.JSON(http.StatusOK, ListUsersResponse{
		Users:      users,
		Pagination: pagination,
	})
}

// ValidateUser handles POST /v1/users/validate
func (h *UserHandler) ValidateUser(c *gin.Context) {
	var req ValidateUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.uc.ValidateUser(c.Request.Context(), user.ValidateUserRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ValidateUserResponse{Valid: true, Email: resp.Email})
}

func (h *UserHandler) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid user id", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Field:   "id",
			Message: "User ID must be a valid number",
		})
		return 0, false
	}
	return id, true
}

func (h *UserHandler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_body",
			Message: err.Error(),
		})
		return false
	}
	return true
}

// handleError converts usecase errors to HTTP responses.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	var (
		required   *apperrors.RequiredFieldError
		validation *apperrors.ValidationError
		notFound   *apperrors.NotFoundError
	)

	switch {
	case errors.As(err, &required):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "required_field",
			Field:   required.Field,
			Message: required.Error(),
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Field:   validation.Field,
			Message: validation.Message,
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: notFound.Error(),
		})
	default:
		logger.WithContext(c.Request.Context(), h.log).Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

func toUserResponse(u user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
