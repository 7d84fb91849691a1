package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gopkg.in/go-playground/validator.v9"
)

// NewValidator func
func NewValidator() *Validator {
	return &Validator{
		validator: validator.New(),
	}
}

// Validator struct
type Validator struct {
	validator *validator.Validate
}

// Validate checks `validate` struct tags; failures are 400s
func (v *Validator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
