// Package auth handles user registration, login, and request authentication
// for Wellnest. Passwords are hashed with bcrypt; identity is carried in a
// signed, self-contained token (HS256 JWT) that expires after seven days and
// is never revoked server-side.
package auth

import (
	"time"
)

// User represents a registered user. Database scanning and JSON marshaling
// use this struct directly.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON responses.
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated subject resolved from a token. It is what
// the auth gate attaches to the request context.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// --- Request DTOs (bound from HTTP requests) ---

// CredentialsRequest is the body of both register and login.
type CredentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// --- Service Input / Output ---

// CredentialsInput is the input for creating or authenticating a user.
type CredentialsInput struct {
	Email    string
	Password string
}

// AuthResult is returned by register and login: a fresh token plus the
// public view of the user.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
