package user

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"", ErrPasswordRequired},
		{"Sh0rt!", ErrWeakPassword},
		{"alllowercase1!", ErrWeakPassword},
		{"ALLUPPERCASE1!", ErrWeakPassword},
		{"NoDigitsHere!", ErrWeakPassword},
		{"NoSymbols123", ErrWeakPassword},
		{"Aa1!" + strings.Repeat("x", 80), ErrPasswordTooLong},
		{"weak" + strings.Repeat("x", 80), ErrPasswordTooLong},
		{"Sup3r$ecret", nil},
		{"Correct-Horse-9", nil},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := validatePassword(tt.password)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.ErrorIs(t, validateEmail(""), ErrEmailRequired)
	assert.ErrorIs(t, validateEmail("plainaddress"), ErrInvalidEmail)
	assert.ErrorIs(t, validateEmail("a@"), ErrInvalidEmail)
	assert.NoError(t, validateEmail("ada@example.com"))
}

func TestValidateAge(t *testing.T) {
	negative, zero, largest, tooLarge := -1, 0, math.MaxInt32, math.MaxInt32+1
	assert.NoError(t, validateAge(nil))
	assert.NoError(t, validateAge(&zero))
	assert.NoError(t, validateAge(&largest))
	assert.ErrorIs(t, validateAge(&negative), ErrInvalidAge)
	assert.ErrorIs(t, validateAge(&tooLarge), ErrInvalidAge)
}

func TestSearchable(t *testing.T) {
	for _, key := range []string{"email", "name", "postal_code", "profession"} {
		assert.True(t, Searchable(key), key)
	}
	for _, key := range []string{"password", "age", "created_at", "id", ""} {
		assert.False(t, Searchable(key), key)
	}
}
