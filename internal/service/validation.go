package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ferrybook/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validationError converts the first validator failure into a domain.ValidationError.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.ValidationError{Msg: err.Error(), Err: err}
	}

	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min", "gte":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		msg = fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		msg = fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		msg = fmt.Sprintf("must match %s", fe.Param())
	default:
		msg = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return domain.ValidationError{Field: field, Msg: msg, Err: err}
}

// newCode builds a short human readable identifier such as FRY-3F9A1C7D.
func newCode(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:10])
}
