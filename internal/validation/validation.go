package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"furniture-dashboard/pkg/apierror"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 64
)

var (
	phonePattern    = regexp.MustCompile(`^(?:\+33[ .-]?|0)[1-9](?:[ .-]?\d{2}){4}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)
	objectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so the browser can map them to inputs.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("phone", matches(phonePattern))
	_ = v.RegisterValidation("username", matches(usernamePattern))
	_ = v.RegisterValidation("objectid", matches(objectIDPattern))
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})

	return v
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

// StrongPassword reports whether s has 8 to 64 characters with at least one
// lower-case letter, one upper-case letter, one digit and one symbol.
func StrongPassword(s string) bool {
	length := len([]rune(s))
	if length < PasswordMinLength || length > PasswordMaxLength {
		return false
	}

	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
			return false
		default:
			special = true
		}
	}

	return lower && upper && digit && special
}

// Struct validates s and returns a validation-kind APIError carrying one
// message per failing field, or nil.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierror.Validation("INVALID_INPUT", err.Error(), nil)
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fieldPath(fe)] = msgForTag(fe)
	}

	return apierror.Validation("VALIDATION_FAILED", "Please correct the highlighted fields", fields)
}

// fieldPath strips the root struct name: "SupplierPayload.email" -> "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "phone":
		return "must be a valid phone number"
	case "username":
		return "must be 3 to 30 letters, digits, dots, dashes or underscores"
	case "objectid":
		return "must be a valid identifier"
	case "password":
		return fmt.Sprintf("must be %d to %d characters with upper and lower case letters, a digit and a symbol", PasswordMinLength, PasswordMaxLength)
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// ID checks an entity identifier taken from a URL.
func ID(id string) error {
	if err := validate.Var(id, "required,objectid"); err != nil {
		return apierror.Validation("INVALID_ID", "Invalid identifier", map[string]string{"id": "must be a valid identifier"})
	}
	return nil
}
