package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// maxBodyBytes bounds request bodies; block content tops out well below it.
const maxBodyBytes = 1 << 20

// Validator checks request DTOs against their struct tags and reports the
// JSON field names in its errors.
type Validator struct {
	validate *validator.Validate
}

// NewValidator configures a validator.Validate for the request DTOs.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates dst, returning a VALIDATION error listing each field.
func (v *Validator) Struct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Validation(errors.CodeInvalidInput.String(), "invalid request").WithCause(err).Build()
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return errors.Validation(errors.CodeInvalidInput.String(), "invalid request").
		WithDetails(strings.Join(problems, "; ")).
		Build()
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.Validation(errors.CodeInvalidInput.String(), "request body too large").Build()
		case stderrors.Is(err, io.EOF):
			return errors.Validation(errors.CodeInvalidInput.String(), "request body is required").Build()
		default:
			return errors.Validation(errors.CodeInvalidInput.String(), "invalid JSON body").WithDetails(err.Error()).Build()
		}
	}
	return h.validator.Struct(dst)
}
