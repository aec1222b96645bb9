package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// payloadError is a request body that could not be decoded or failed struct
// validation.  writeError renders it as is.
type payloadError struct {
	status  int
	code    string
	message string
	details any
}

func (e *payloadError) Error() string { return e.code + ": " + e.message }

// decodeBody binds the body into dst and runs struct validation.  It returns
// nil or a *payloadError.
func decodeBody(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return &payloadError{status: http.StatusBadRequest, code: "BAD_REQUEST", message: "malformed JSON body"}
	}
	if err := c.Validate(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fe.Field())
			}
			return &payloadError{status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED",
				message: "invalid fields", details: echo.Map{"fields": fields}}
		}
		return &payloadError{status: http.StatusBadRequest, code: "BAD_REQUEST", message: err.Error()}
	}
	return nil
}

// bindAndValidate is decodeBody for handlers without their own admission
// step.  The returned error has already been written to the response.
func bindAndValidate(c echo.Context, dst interface{}) (bool, error) {
	if err := decodeBody(c, dst); err != nil {
		return false, writeError(c, err)
	}
	return true, nil
}
