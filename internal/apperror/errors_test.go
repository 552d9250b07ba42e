package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHasCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading post: %w", NewNotFound("post not found"))

	if !HasCode(err, http.StatusNotFound) {
		t.Error("expected wrapped not-found error to match 404")
	}
	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	if HasCode(err, http.StatusForbidden) {
		t.Error("did not expect 403 to match")
	}
}

func TestSafeMessage_HidesInternalErrors(t *testing.T) {
	raw := errors.New("Error 1146: Table 'scribe.posts' doesn't exist")
	if got := SafeMessage(raw); got != "an unexpected error occurred" {
		t.Errorf("expected generic message, got %q", got)
	}
	if got := SafeCode(raw); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}

	internal := NewInternal(raw)
	if SafeMessage(internal) == raw.Error() {
		t.Error("internal error message must not be exposed")
	}
	if !errors.Is(internal, raw) {
		t.Error("expected NewInternal to wrap the cause")
	}
}

func TestConstructors_Codes(t *testing.T) {
	cases := []struct {
		err  *AppError
		code int
	}{
		{NewBadRequest("x"), http.StatusBadRequest},
		{NewUnauthorized("x"), http.StatusUnauthorized},
		{NewForbidden("x"), http.StatusForbidden},
		{NewConflict("x"), http.StatusConflict},
		{NewPayloadTooLarge("x"), http.StatusRequestEntityTooLarge},
		{NewUnsupportedMedia("x"), http.StatusUnsupportedMediaType},
		{NewValidation("x"), http.StatusUnprocessableEntity},
		{NewTooManyRequests("x"), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Errorf("%s: expected %d, got %d", tc.err.Type, tc.code, tc.err.Code)
		}
	}
}
