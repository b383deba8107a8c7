package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tenant-access-control/internal/platform/apperr"
)

type signup struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Role     string `validate:"omitempty,oneof=admin member"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(signup{Email: "a@example.com", Password: "password1"}))

	err := Struct(signup{Email: "nope", Password: "short", Role: "owner"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	msg := err.Error()
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "password must be at least 8 characters")
	assert.Contains(t, msg, "role must be one of: admin member")

	err = Struct(signup{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "email is required")
}

func TestStruct_NotAStruct(t *testing.T) {
	assert.ErrorIs(t, Struct(42), apperr.ErrInvalidArgument)
}
