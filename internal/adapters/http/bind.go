package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

const defaultMaxJSONBytes = 8 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		validate = v
	})
	return validate
}

// decodeJSON reads a single JSON object into T and validates it. Failures are
// returned as domain.ErrInvalidInput.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, error) {
	var dst T
	if maxBytes <= 0 {
		maxBytes = defaultMaxJSONBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return dst, err
		}
		if errors.Is(err, io.EOF) {
			return dst, domain.WrapError(domain.ErrInvalidInput, "decode json", errors.New("empty body"))
		}
		return dst, domain.WrapError(domain.ErrInvalidInput, "decode json", err)
	}
	if dec.More() {
		return dst, domain.WrapError(domain.ErrInvalidInput, "decode json", errors.New("unexpected trailing data"))
	}

	if err := requestValidator().Struct(dst); err != nil {
		return dst, domain.WrapError(domain.ErrInvalidInput, "validate request", validationMessage(err))
	}
	return dst, nil
}

func validationMessage(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Errorf("%s is required", fe.Field())
	case "max":
		return fmt.Errorf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Errorf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
