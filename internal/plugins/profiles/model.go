// Package profiles serves the /rest/v1/profiles table: the application-level
// user record (username, avatar) kept separately from the auth identity.
package profiles

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Profile is one row of the profiles table. id equals the auth user id.
type Profile struct {
	ID        string    `json:"id"`
	Username  *string   `json:"username"`
	AvatarURL *string   `json:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertRequest is the body of POST /rest/v1/profiles. PostgREST clients may
// send a single object; the handler also accepts a one-element array.
type UpsertRequest struct {
	ID        string  `json:"id"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// Validate checks field shapes. Ownership is checked by the service.
func (r UpsertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, is.UUID),
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(1, 50)),
		validation.Field(&r.AvatarURL, validation.NilOrNotEmpty, is.URL),
	)
}
