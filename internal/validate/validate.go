// Package validate schema-checks inbound request payloads before any
// identity lookup or backend call happens on their behalf.
package validate

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/modelgate/modelgate/internal/domain"
)

// Images must arrive as a base64 data URI; bare base64 strings are rejected.
// Accepted media types: png, jpeg (and its jpg alias), gif, webp.
var imagePrefixPattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg|gif|webp);base64,`)

// Validator checks generation payloads against their declared schema.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with the image data-URI rule registered and field
// names taken from json tags so error detail matches the wire format.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Tag registration only fails for empty tag names.
	_ = v.RegisterValidation("base64image", func(fl validator.FieldLevel) bool {
		return ValidImage(fl.Field().String())
	})

	return &Validator{v: v}
}

// ValidImage reports whether s is a well-formed base64 image data URI with a
// supported media type and a decodable, non-empty payload.
func ValidImage(s string) bool {
	loc := imagePrefixPattern.FindStringIndex(s)
	if loc == nil {
		return false
	}
	payload := s[loc[1]:]
	if payload == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(payload)
	return err == nil
}

// GenerateRequest decodes and validates a generation request body. On
// failure it returns a validation error carrying one message per offending
// field plus per-field and form-level detail maps.
func (val *Validator) GenerateRequest(body io.Reader) (*domain.GenerateRequest, error) {
	var req domain.GenerateRequest

	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return nil, decodeError(err)
	}

	if err := val.v.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, validationError(verrs)
		}
		// validator.InvalidValidationError only happens on non-struct input,
		// which would be a programming error here.
		return nil, err
	}

	return &req, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field := typeErr.Field
		msg := fmt.Sprintf("%s has invalid type %s. ", field, typeErr.Value)
		return domain.ErrValidation(msg, map[string][]string{
			field: {fmt.Sprintf("expected %s, received %s", typeErr.Type, typeErr.Value)},
		}, nil)
	}
	return domain.ErrValidation("request body is not valid JSON. ", nil,
		[]string{"request body is not valid JSON"})
}

func validationError(verrs validator.ValidationErrors) error {
	fieldErrors := make(map[string][]string, len(verrs))
	var message strings.Builder

	for _, fe := range verrs {
		field := fieldName(fe)
		detail := fieldMessage(fe)
		fieldErrors[field] = append(fieldErrors[field], detail)
		fmt.Fprintf(&message, "%s %s. ", field, detail)
	}

	return domain.ErrValidation(message.String(), fieldErrors, nil)
}

// fieldName strips the struct name and any slice index from the error's
// namespace, leaving the wire-level field name.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.Index(name, "["); i > 0 {
		name = name[:i]
	}
	return name
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "is required"
	case "base64image":
		return "must be a base64 encoded image data URI (png, jpeg, gif or webp)"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
