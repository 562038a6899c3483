package auth

import (
	"hrdesk/errors"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SignUpRequest carries the profile sent to the account-creation endpoint.
type SignUpRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
	FullName string `validate:"required,min=2,max=120"`
}

// SignInRequest carries the credentials exchanged for a bearer token.
// EmailOrUsername is free-form on purpose: the server accepts both.
type SignInRequest struct {
	EmailOrUsername string `validate:"required"`
	Password        string `validate:"required"`
}

func ValidateSignUp(req SignUpRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func ValidateSignIn(req SignInRequest) error {
	return validate.Struct(req)
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
