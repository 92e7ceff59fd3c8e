package user

import (
	"github.com/go-playground/validator/v10"

	apperrors "user-record-service/pkg/errors"
)

const (
	fieldEmail    = "email"
	fieldPassword = "password"

	tagEmailFormat = "email_format"
)

// record declares the field rules in the order they are reported.
type record struct {
	Email    string `validate:"required,email_format"`
	Password string `validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(tagEmailFormat, func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// validateFields maps the first failed rule onto the application error kinds.
func validateFields(email, password string) error {
	err := validate.Struct(record{Email: email, Password: password})
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}

	first := verrs[0]
	field := fieldName(first.StructField())
	switch first.Tag() {
	case "required":
		return apperrors.NewRequiredFieldError(field)
	case tagEmailFormat:
		return apperrors.NewValidationError(field, InvalidEmailMessage)
	default:
		return apperrors.NewValidationError(field, field+" is invalid")
	}
}

func fieldName(structField string) string {
	switch structField {
	case "Email":
		return fieldEmail
	case "Password":
		return fieldPassword
	default:
		return structField
	}
}
