// Package validation holds input validation shared by the config loader,
// the operator API and the CLI.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid общая ошибка валидации входных данных
var ErrInvalid = errors.New("validation failed")

// UsernamePattern допустимый формат имени оператора:
// латинские буквы, цифры, нижнее подчеркивание, 3-32 символа
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// entityIDPattern идентификатор сущности в системе учета
var entityIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 32
	// MinPasswordLen минимальная длина пароля оператора
	MinPasswordLen = 12
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("entity_id", func(fl validator.FieldLevel) bool {
		return entityIDPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return UsernamePattern.MatchString(fl.Field().String())
	})
}

// Struct проверяет структуру по тегам validate и возвращает
// первую ошибку в читаемом виде, обернутую в ErrInvalid
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateUsername проверяет имя оператора
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalid)
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("%w: username must be at least %d characters long", ErrInvalid, MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("%w: username must not exceed %d characters", ErrInvalid, MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)", ErrInvalid)
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю оператора
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalid)
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrInvalid, MinPasswordLen)
	}

	return nil
}

// ValidateEntityID проверяет идентификатор сущности
func ValidateEntityID(id string) error {
	if !entityIDPattern.MatchString(id) {
		return fmt.Errorf("%w: entity id %q must be 1-128 characters of letters, digits, '_', '.', ':' or '-'", ErrInvalid, id)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	// возвращаем только первую ошибку
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%w: %s: field is required", ErrInvalid, field)
		case "min", "gte":
			return fmt.Errorf("%w: %s: must be at least %s", ErrInvalid, field, param)
		case "max", "lte":
			return fmt.Errorf("%w: %s: must not exceed %s", ErrInvalid, field, param)
		case "oneof":
			return fmt.Errorf("%w: %s: must be one of [%s]", ErrInvalid, field, param)
		case "url", "http_url":
			return fmt.Errorf("%w: %s: must be a valid URL", ErrInvalid, field)
		case "entity_id":
			return fmt.Errorf("%w: %s: invalid entity id", ErrInvalid, field)
		case "username":
			return fmt.Errorf("%w: %s: invalid username", ErrInvalid, field)
		default:
			return fmt.Errorf("%w: %s: validation failed (%s)", ErrInvalid, field, e.Tag())
		}
	}

	return fmt.Errorf("%w: %w", ErrInvalid, err)
}
