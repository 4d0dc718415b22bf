package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Name  string   `json:"name" validate:"required,max=5"`
	Email string   `json:"email" validate:"required,email"`
	Qty   int      `json:"qty" validate:"min=1,max=100"`
	Seats []uint64 `json:"seat_ids" validate:"omitempty,unique"`
	Role  string   `json:"role" validate:"omitempty,oneof=user admin"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(signup{Name: "toolong", Email: "nope", Qty: 0, Seats: []uint64{1, 1}, Role: "owner"})
	require.Error(t, err)

	var ve *Error
	require.True(t, errors.As(err, &ve))
	fields := map[string]string{}
	for _, f := range ve.Fields {
		fields[f.Field] = f.Tag
	}
	assert.Equal(t, map[string]string{
		"name":     "max",
		"email":    "email",
		"qty":      "min",
		"seat_ids": "unique",
		"role":     "oneof",
	}, fields)
	assert.Contains(t, err.Error(), "seat_ids contains duplicates")
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, Echo{}.Validate(&signup{Name: "Ada", Email: "ada@example.com", Qty: 2}))
}
