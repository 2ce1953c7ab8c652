package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// decimal.Decimal is read directly; registering a custom type func that
	// returns the same type loops inside the validator.
	err := v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	})
	if err != nil {
		panic(fmt.Sprintf("register positive_decimal: %v", err))
	}
	return v
}

var fieldMessages = map[string]func(param string) string{
	"required":         func(string) string { return "is required" },
	"email":            func(string) string { return "must be a valid email" },
	"url":              func(string) string { return "must be a valid URL" },
	"min":              func(p string) string { return "must be at least " + p },
	"max":              func(p string) string { return "must be at most " + p },
	"gte":              func(p string) string { return "must be at least " + p },
	"gt":               func(p string) string { return "must be greater than " + p },
	"oneof":            func(p string) string { return "must be one of [" + p + "]" },
	"positive_decimal": func(string) string { return "must be a positive amount" },
}

// checkStruct runs validator tags and reports every failing field.
func (h *Handler) checkStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// Namespace is "<struct>.<json path>".
		_, name, _ := strings.Cut(fe.Namespace(), ".")
		msg := "is invalid"
		if f, ok := fieldMessages[fe.Tag()]; ok {
			msg = f(fe.Param())
		}
		fields[name] = msg
	}
	return &domain.ValidationError{Fields: fields}
}

// readBody returns the raw request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewValidationError("body", "could not be read")
	}
	return body, nil
}

// decodeJSON strictly decodes body into dst and validates it.
func (h *Handler) decodeJSON(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if dec.More() {
		return domain.NewValidationError("body", "must contain a single JSON object")
	}
	return h.checkStruct(dst)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	return h.decodeJSON(body, dst)
}
