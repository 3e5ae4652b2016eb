// Package validate wraps go-playground/validator with the rules used
// for registration, password changes and question input.
package validate

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	_ = val.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return val
}

// Registration is the input of the sign-up form.
type Registration struct {
	Username string `validate:"required,min=2,max=32,username"`
	Password string `validate:"required,min=6,max=72"`
}

// PasswordChange is the input of the change-password form.
type PasswordChange struct {
	Old string `validate:"required"`
	New string `validate:"required,min=6,max=72"`
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	return v.Struct(s)
}

// Var validates a single value against a tag expression.
func Var(field any, tag string) error {
	return v.Var(field, tag)
}

// MessageID maps a validation error to a translation message ID. It
// returns "InvalidInput" for anything it does not recognise.
func MessageID(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "InvalidInput"
	}
	fe := verrs[0]
	switch fe.StructField() {
	case "Username":
		switch fe.Tag() {
		case "required":
			return "UsernameRequired"
		case "min":
			return "UsernameTooShort"
		case "max":
			return "UsernameTooLong"
		case "username":
			return "UsernameInvalid"
		}
	case "Password", "New":
		switch fe.Tag() {
		case "required", "min":
			return "PasswordTooShort"
		case "max":
			return "PasswordTooLong"
		}
	case "Old":
		return "OldPasswordRequired"
	case "Content", "OptionA", "OptionB", "OptionC", "OptionD":
		return "QuestionIncomplete"
	case "Correct":
		return "QuestionBadKey"
	}
	return "InvalidInput"
}
