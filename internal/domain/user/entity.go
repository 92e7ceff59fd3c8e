package user

import "time"

// User represents a stored user record.
type User struct {
	ID        int64     // ID is assigned by the storage layer
	Email     string    // Email is required, trimmed and format-checked on every write
	Password  string    // Password is required; stored as given
	CreatedAt time.Time // CreatedAt is set on insert
	UpdatedAt time.Time // UpdatedAt is set on every write
}

// Normalize trims surrounding whitespace from the email in place.
func (u *User) Normalize() {
	u.Email = TrimEmail(u.Email)
}

// Validate checks the record against the write-time rules and returns the
// first failure: a missing email, a malformed email, then a missing password.
// The email is checked in its trimmed form whether or not Normalize ran.
func (u *User) Validate() error {
	return validateFields(TrimEmail(u.Email), u.Password)
}
