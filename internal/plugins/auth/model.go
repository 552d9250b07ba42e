// Package auth is the platform's auth provider. It owns user credentials
// (argon2id hashes in MariaDB), issues HS256 access tokens and opaque refresh
// tokens (tracked in Redis), handles password recovery, and provides the
// bearer and cookie middleware the other plugins use to identify callers.
//
// JSON endpoints live under /auth/v1; the web login form is served at /login.
package auth

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
)

// User is a registered identity. Metadata holds free-form profile hints
// (username, avatar_url) set by clients through PUT /auth/v1/user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSignIn   *time.Time
}

// UserResponse is the public JSON view of a User.
type UserResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSignIn   *time.Time     `json:"last_sign_in_at,omitempty"`
}

// ToResponse converts a User for JSON output. Never includes the hash.
func (u *User) ToResponse() UserResponse {
	meta := u.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		UserMetadata: meta,
		CreatedAt:    u.CreatedAt,
		LastSignIn:   u.LastSignIn,
	}
}

// Session is an issued token pair, returned by signup, password grant,
// refresh grant, and recovery verification.
type Session struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// Identity is the authenticated caller, placed in the echo context by the
// auth middleware.
type Identity struct {
	UserID    string
	Email     string
	SessionID string
}

// Claims are the access token claims. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
}

// sessionRecord is the Redis value for one login session.
type sessionRecord struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

// --- Request DTOs ---

// CredentialsRequest is the body of POST /signup and the password grant.
type CredentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate checks shape only; the strength policy is enforced by clients.
func (r CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

// RefreshRequest is the body of the refresh_token grant.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Validate requires a token.
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// UpdateUserRequest is the body of PUT /user. Either field may be absent.
type UpdateUserRequest struct {
	Password *string         `json:"password,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Validate bounds the new password when one is given.
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.NilOrNotEmpty, validation.Length(8, 128)),
	)
}

// RecoverRequest is the body of POST /recover.
type RecoverRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to"`
}

// Validate requires a well-formed email; redirect_to is optional.
func (r RecoverRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.RedirectTo, is.URL),
	)
}

// VerifyRequest is the body of POST /verify.
type VerifyRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Validate accepts only recovery verification.
func (r VerifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required, validation.In("recovery")),
		validation.Field(&r.Token, validation.Required),
	)
}

// --- Service inputs ---

// UpdateUserInput is the decoded form of UpdateUserRequest.
type UpdateUserInput struct {
	Password *string
	Data     map[string]any
}
