package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	maxBodyBytes = 1 << 20
	outOfRange   = "out of range"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Decimals are validated through their string form. Out of range values
	// must never be formatted: String on 1e400000000 expands every digit.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		if !models.PriceInRange(d) {
			return outOfRange
		}
		return d.String()
	}, decimal.Decimal{})

	// maxbytes bounds the encoded length, where max counts runes.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= n
	})

	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		var upper, lower, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return upper && lower && digit
	})

	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return models.ValidPrice(d)
	})

	return v
}

// FieldError is one entry of the details list of a VALIDATION_ERROR.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validationError carries details back to the handler.
type validationError struct {
	message string
	fields  []FieldError
}

func (e *validationError) Error() string { return e.message }

func invalid(message string, fields ...FieldError) *validationError {
	return &validationError{message: message, fields: fields}
}

// decodeJSON reads a single JSON object into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return invalid("Request body is required")
		case errors.As(err, &typeErr):
			return invalid("Validation failed", FieldError{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("must be a %s", jsonKind(typeErr.Type)),
			})
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return invalid("Validation failed", FieldError{Field: field, Message: "unknown field"})
		default:
			return invalid("Malformed JSON body")
		}
	}
	if dec.More() {
		return invalid("Request body must contain a single JSON object")
	}

	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return invalid("Validation failed", fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "password":
		return "must contain at least one uppercase letter, one lowercase letter and one number"
	case "maxbytes":
		return fmt.Sprintf("must be at most %s bytes", fe.Param())
	case "price":
		return "must be positive, at most 99999999.99, with at most 2 decimal places"
	default:
		return "is invalid"
	}
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "whole number"
	case reflect.String:
		return "string"
	case reflect.Struct, reflect.Ptr:
		return "number"
	default:
		return t.Kind().String()
	}
}
