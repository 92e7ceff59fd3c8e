package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	usecase "user-record-service/internal/usecase/user"
	apperrors "user-record-service/pkg/errors"
)

// MockUserUsecase is a mock implementation of user.Service
type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) CreateUser(ctx context.Context, req usecase.CreateUserRequest) (*usecase.CreateUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.CreateUserResponse), args.Error(1)
}

func (m *MockUserUsecase) GetUser(ctx context.Context, req usecase.GetUserRequest) (*usecase.GetUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.GetUserResponse), args.Error(1)
}

func (m *MockUserUsecase) UpdateUser(ctx context.Context, req usecase.UpdateUserRequest) (*usecase.UpdateUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.UpdateUserResponse), args.Error(1)
}

func (m *MockUserUsecase) DeleteUser(ctx context.Context, req usecase.DeleteUserRequest) (*usecase.DeleteUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DeleteUserResponse), args.Error(1)
}

func (m *MockUserUsecase) ListUsers(ctx context.Context, req usecase.ListUsersRequest) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

func (m *MockUserUsecase) ValidateUser(ctx context.Context, req usecase.ValidateUserRequest) (*usecase.ValidateUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ValidateUserResponse), args.Error(1)
}

func setupTest(t *testing.T) (*gin.Engine, *MockUserUsecase) {
	gin.SetMode(gin.TestMode)
	mockUsecase := new(MockUserUsecase)
	h := NewUserHandler(mockUsecase, zaptest.NewLogger(t))

	r := gin.New()
	r.POST("/users", h.CreateUser)
	r.POST("/users/validate", h.ValidateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
	return r, mockUsecase
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, usecase.CreateUserRequest{Email: "john@example.com", Password: "secret"}).
			Return(&usecase.CreateUserResponse{ID: 1}, nil)

		w := do(r, http.MethodPost, "/users", `{"email":"john@example.com","password":"secret"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"id":1}`, w.Body.String())
	})

	t.Run("Invalid Request Body", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodPost, "/users", "invalid json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_body", decodeError(t, w).Error)
		mockUsecase.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Required Field", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).Return(nil, apperrors.NewRequiredFieldError("email"))

		w := do(r, http.MethodPost, "/users", `{"password":"secret"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorResponse{Error: "required_field", Field: "email", Message: "email is required"}, decodeError(t, w))
	})

	t.Run("Invalid Email", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewValidationError("email", "Please enter a vaild email address"))

		w := do(r, http.MethodPost, "/users", `{"email":"not-an-email","password":"secret"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorResponse{Error: "validation_error", Field: "email", Message: "Please enter a vaild email address"}, decodeError(t, w))
	})

	t.Run("Usecase Error", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		w := do(r, http.MethodPost, "/users", `{"email":"john@example.com","password":"secret"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

func TestGetUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: 1}).
			Return(&usecase.GetUserResponse{User: usecase.User{ID: 1, Email: "john@example.com"}}, nil)

		w := do(r, http.MethodGet, "/users/1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "john@example.com", resp.Email)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("Invalid ID", func(t *testing.T) {
		r, _ := setupTest(t)

		w := do(r, http.MethodGet, "/users/abc", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_id", decodeError(t, w).Error)
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: 999}).
			Return(nil, apperrors.NewNotFoundError("user", "user not found: id=999"))

		w := do(r, http.MethodGet, "/users/999", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "user not found: id=999", decodeError(t, w).Message)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("Partial", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.MatchedBy(func(req usecase.UpdateUserRequest) bool {
			return req.ID == 1 && req.Email != nil && *req.Email == "new@example.com" && req.Password == nil
		})).Return(&usecase.UpdateUserResponse{ID: 1}, nil)

		w := do(r, http.MethodPut, "/users/1", `{"email":"new@example.com"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Explicit Empty Password", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.MatchedBy(func(req usecase.UpdateUserRequest) bool {
			return req.Password != nil && *req.Password == ""
		})).Return(nil, apperrors.NewRequiredFieldError("password"))

		w := do(r, http.MethodPut, "/users/1", `{"password":""}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "password", decodeError(t, w).Field)
	})
}

func TestDeleteUser(t *testing.T) {
	r, mockUsecase := setupTest(t)
	mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{ID: 3}).Return(&usecase.DeleteUserResponse{ID: 3}, nil)

	w := do(r, http.MethodDelete, "/users/3", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":3}`, w.Body.String())
}

func TestListUsers(t *testing.T) {
	t.Run("Passes Query", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{Query: "example", Page: 2, Limit: 5}).
			Return(&usecase.ListUsersResponse{
				Users:      []usecase.User{{ID: 6, Email: "f@example.com"}},
				Pagination: &usecase.Pagination{Total: 6, Page: 2, Limit: 5, TotalPages: 2},
			}, nil)

		w := do(r, http.MethodGet, "/users?query=example&page=2&limit=5", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ListUsersResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Users, 1)
		assert.Equal(t, int64(2), resp.Pagination.TotalPages)
	})

	t.Run("Garbage Paging Uses Defaults", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{}).
			Return(&usecase.ListUsersResponse{Users: []usecase.User{}}, nil)

		w := do(r, http.MethodGet, "/users?page=x&limit=y", "")

		assert.Equal(t, http.StatusOK, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Invalid Query", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewValidationError("query", "invalid search query: search query contains invalid characters"))

		w := do(r, http.MethodGet, "/users?query=a%3Bb", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "query", decodeError(t, w).Field)
	})
}

func TestValidateUser(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ValidateUser", mock.Anything, usecase.ValidateUserRequest{Email: " a@b.com ", Password: "x"}).
			Return(&usecase.ValidateUserResponse{Email: "a@b.com"}, nil)

		w := do(r, http.MethodPost, "/users/validate", `{"email":" a@b.com ","password":"x"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"valid":true,"email":"a@b.com"}`, w.Body.String())
	})

	t.Run("Rejected", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ValidateUser", mock.Anything, mock.Anything).Return(nil, apperrors.NewRequiredFieldError("password"))

		w := do(r, http.MethodPost, "/users/validate", `{"email":"a@b.com"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "required_field", decodeError(t, w).Error)
	})
}
