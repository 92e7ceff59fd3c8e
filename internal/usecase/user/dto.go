package user

import "time"

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	Email    string
	Password string
}

// CreateUserResponse represents the response payload after creating a user.
type CreateUserResponse struct {
	ID int64
}

// UpdateUserRequest represents the request payload for updating an existing user.
// Nil fields keep their stored value.
type UpdateUserRequest struct {
	ID       int64
	Email    *string
	Password *string
}

// UpdateUserResponse represents the response payload after updating a user.
type UpdateUserResponse struct {
	ID int64
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// DeleteUserResponse represents the response payload after deleting a user.
type DeleteUserResponse struct {
	ID int64
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// GetUserResponse represents the response payload for user details.
// The password is never returned.
type GetUserResponse struct {
	User
}

// ListUsersRequest represents the request payload for listing users.
// It supports pagination and search over email.
type ListUsersRequest struct {
	Query string
	Page  int64
	Limit int64
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users      []User
	Pagination *Pagination
}

// ValidateUserRequest carries a candidate record to check without storing it.
type ValidateUserRequest struct {
	Email    string
	Password string
}

// ValidateUserResponse reports the normalized email of an accepted record.
type ValidateUserResponse struct {
	Email string
}

// Pagination represents pagination information for list responses.
type Pagination struct {
	Total      int64
	Page       int64
	Limit      int64
	TotalPages int64
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID        int64
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
