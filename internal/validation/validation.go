package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

const minPasswordLength = 8

var (
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	phoneFiller  = regexp.MustCompile(`[\s\-()]`)
	nonDigit     = regexp.MustCompile(`\D`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		ok, _ := PasswordStrength(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		phone := fl.Field().String()
		return IsValidPhone(phone) || IsEcuadorPhone(phone)
	})
	return v
}

// Struct validates a form payload and returns a VALIDATION_ERROR describing every
// failing field. The first failing field is reported in AuthError.Field.
func Struct(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), "")
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, message(fe))
	}
	return apperrors.NewValidationError(strings.Join(messages, ", "), fieldErrs[0].Field())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "email format is invalid"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "password":
		_, msg := PasswordStrength(fe.Value().(string))
		return msg
	case "phone":
		return "phone format is invalid"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// PasswordStrength checks the storefront password policy: at least eight characters
// with an upper-case letter, a lower-case letter and a digit.
func PasswordStrength(password string) (bool, string) {
	if len(password) < minPasswordLength {
		return false, fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return false, "password must contain at least one upper-case letter"
	}
	if !lower {
		return false, "password must contain at least one lower-case letter"
	}
	if !digit {
		return false, "password must contain at least one digit"
	}
	return true, "password is valid"
}

// IsValidPhone accepts an optional leading + followed by up to 16 digits, ignoring
// spaces, dashes and parentheses.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phoneFiller.ReplaceAllString(phone, ""))
}

// IsEcuadorPhone accepts 10-digit mobile numbers starting with 09 and 9-digit
// landlines starting with 0 followed by an area digit between 2 and 7.
func IsEcuadorPhone(phone string) bool {
	clean := nonDigit.ReplaceAllString(phone, "")
	switch {
	case len(clean) == 10 && strings.HasPrefix(clean, "09"):
		return true
	case len(clean) == 9 && clean[0] == '0':
		return clean[1] >= '2' && clean[1] <= '7'
	}
	return false
}
