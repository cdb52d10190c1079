package user

import (
	"math"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a client input error; handlers render it as 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmailRequired     = &ValidationError{"email is required"}
	ErrPasswordRequired  = &ValidationError{"password is required"}
	ErrInvalidEmail      = &ValidationError{"invalid email"}
	ErrWeakPassword      = &ValidationError{"weak password"}
	ErrPasswordTooLong   = &ValidationError{"password too long"}
	ErrInvalidAge        = &ValidationError{"age must be an integer between 0 and 2147483647"}
	ErrInvalidSearchKey  = &ValidationError{"invalid search key"}
	ErrInvalidPagination = &ValidationError{"invalid pagination"}
	ErrMalformedBody     = &ValidationError{"malformed request body"}
)

func fieldTypeError(key, kind string) *ValidationError {
	return &ValidationError{key + " must be " + kind}
}

// Password policy: at least one of each character class.
const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("strongpassword", strongPassword); err != nil {
		panic(err)
	}
	return v
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if err := validate.Var(email, "email"); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	if err := validate.Var(password, "strongpassword"); err != nil {
		return ErrWeakPassword
	}
	return nil
}

func validateAge(age *int) error {
	// age is an INT column on postgres
	if age != nil && (*age < 0 || *age > math.MaxInt32) {
		return ErrInvalidAge
	}
	return nil
}

func strongPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len([]rune(s)) < minPasswordLength {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}
