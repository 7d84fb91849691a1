package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/atemonitor/atemap/auth"
	"github.com/atemonitor/atemap/multipartx"
	"github.com/atemonitor/atemap/store"
)

var errInvalidID = errors.New("invalid user id")

type jsonHTTPResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

func errorStatus(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.Is(err, auth.ErrAuthenticationRequired),
		errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, store.ErrNoFieldsToUpdate),
		errors.Is(err, store.ErrLastAdmin),
		errors.Is(err, store.ErrInvalidUsername),
		errors.Is(err, store.ErrMissingCredentials),
		errors.Is(err, errInvalidID),
		errors.Is(err, multipartx.ErrNotMultipart),
		errors.Is(err, multipartx.ErrNoBoundary),
		errors.Is(err, multipartx.ErrPartNotFound),
		errors.Is(err, multipartx.ErrMissingFilename),
		errors.Is(err, multipartx.ErrMalformedPart):
		return http.StatusBadRequest
	case errors.As(err, &he):
		return he.Code
	}
	return http.StatusInternalServerError
}

// errorResponse writes err as a JSON failure body with its mapped status.
// Internal failures are logged and hidden from the client.
func errorResponse(c echo.Context, err error) error {
	status := errorStatus(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed: ", err)
		msg = "Internal server error"
	}
	return c.JSON(status, jsonHTTPResponse{false, msg})
}
