package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/0rShemesh/InvestGraph/internal/dca"
	apierrors "github.com/0rShemesh/InvestGraph/internal/errors"
)

// DefaultMaxBodySize bounds request bodies read by Validator.Decode.
const DefaultMaxBodySize = 64 * 1024

// Validator decodes JSON bodies into typed wire structs and checks their
// `validate` tags. Failures come back as dca invalid-input errors so the
// transport reports them exactly like domain validation failures.
type Validator struct {
	validate    *validator.Validate
	maxBodySize int64
}

// NewValidator creates a validator reporting fields by their JSON names.
func NewValidator(maxBodySize int64) *Validator {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, maxBodySize: maxBodySize}
}

// Decode reads the request body into dst and validates it.
func (v *Validator) Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return dca.NewInvalidInput([]dca.FieldError{{Field: "body", Message: "request body is required"}})
	}
	return v.decode(http.MaxBytesReader(w, r.Body, v.maxBodySize), dst)
}

// Unmarshal is Decode for a payload that did not arrive as a request body,
// such as a websocket frame.
func (v *Validator) Unmarshal(data []byte, dst interface{}) error {
	if int64(len(data)) > v.maxBodySize {
		return apierrors.ErrPayloadTooLarge
	}
	return v.decode(bytes.NewReader(data), dst)
}

func (v *Validator) decode(r io.Reader, dst interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return dca.NewInvalidInput([]dca.FieldError{{Field: "body", Message: "request body must contain a single JSON object"}})
	}
	return v.Struct(dst)
}

// Struct validates an already decoded value.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]dca.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, dca.FieldError{Field: fe.Field(), Message: formatValidationError(fe)})
	}
	return dca.NewInvalidInput(fields)
}

// encoding/json reports unknown fields with an untyped error.
const unknownFieldPrefix = "json: unknown field "

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxErr):
		return apierrors.ErrPayloadTooLarge
	case errors.Is(err, io.EOF):
		return dca.NewInvalidInput([]dca.FieldError{{Field: "body", Message: "request body is required"}})
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return dca.NewInvalidInput([]dca.FieldError{{Field: "body", Message: "request body is not valid JSON"}})
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return dca.NewInvalidInput([]dca.FieldError{{
			Field:   field,
			Message: fmt.Sprintf("%s must be a %s", field, jsonKind(typeErr.Type)),
		}})
	case strings.HasPrefix(err.Error(), unknownFieldPrefix):
		field := strings.Trim(strings.TrimPrefix(err.Error(), unknownFieldPrefix), `"`)
		return dca.NewInvalidInput([]dca.FieldError{{Field: field, Message: fmt.Sprintf("unknown field %q", field)}})
	default:
		return dca.NewInvalidInput([]dca.FieldError{{Field: "body", Message: "invalid request body"}})
	}
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "whole number"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Struct, reflect.Map:
		return "object"
	default:
		return t.Kind().String()
	}
}

func formatValidationError(err validator.FieldError) string {
	if err.Tag() == "required" {
		return fmt.Sprintf("%s is required", err.Field())
	}
	return fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag())
}

// ContentTypeValidator rejects bodies that are not one of contentTypes.
func ContentTypeValidator(eh *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err == nil {
				for _, allowed := range contentTypes {
					if strings.EqualFold(mediaType, allowed) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			eh.HandleError(w, r, apierrors.ErrUnsupportedMediaType.WithDetails(map[string]interface{}{
				"content_type": r.Header.Get("Content-Type"),
				"allowed":      contentTypes,
			}))
		})
	}
}
