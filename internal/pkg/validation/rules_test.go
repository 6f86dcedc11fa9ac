package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
)

type inner struct {
	Board string `json:"board" validate:"required,notblank"`
}

type sample struct {
	Email    string  `json:"email" validate:"required,email"`
	Name     string  `json:"name" validate:"required,notblank"`
	Dob      string  `json:"dateOfBirth" validate:"required,isodate"`
	Phone    string  `json:"phone" validate:"required,phone"`
	Optional string  `json:"optional,omitempty"`
	Class10  inner   `json:"class10"`
	Items    []inner `json:"items" validate:"required,min=1,dive"`
}

func validSample() sample {
	return sample{
		Email:   "a@b.co",
		Name:    "Asha",
		Dob:     "2004-02-29",
		Phone:   "9876543210",
		Class10: inner{Board: "CBSE"},
		Items:   []inner{{Board: "x"}},
	}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(validSample()))
}

func TestStruct_ListsEveryFailingField(t *testing.T) {
	s := validSample()
	s.Email = ""
	s.Name = "   "
	s.Dob = "29/02/2004"
	s.Phone = "12ab"
	s.Class10.Board = ""
	s.Items = []inner{{Board: "ok"}, {Board: ""}}

	err := Struct(s)
	require.Error(t, err)

	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t,
		[]string{"email", "name", "dateOfBirth", "phone", "class10.board", "items[1].board"},
		verr.Fields)
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
}

func TestStruct_EmptySliceFails(t *testing.T) {
	s := validSample()
	s.Items = nil

	err := Struct(s)
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"items"}, verr.Fields)
}
