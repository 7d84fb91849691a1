package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho() *echo.Echo {
	return New(sessions.NewCookieStore([]byte("test-secret")), log.OFF, "16B")
}

func TestRequestID(t *testing.T) {
	e := newTestEcho()
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 20)
}

func TestJSONErrors(t *testing.T) {
	e := newTestEcho()
	e.POST("/echo", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })
	e.GET("/panic", func(c echo.Context) error { panic("oops") })

	tests := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{http.MethodGet, "/missing", "", http.StatusNotFound},
		{http.MethodGet, "/boom", "", http.StatusInternalServerError},
		{http.MethodGet, "/panic", "", http.StatusInternalServerError},
		{http.MethodPost, "/echo", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			require.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"status":false`)
		})
	}
}

func TestValidator(t *testing.T) {
	type payload struct {
		Name string `validate:"required"`
	}
	v := NewValidator()
	assert.Error(t, v.Validate(payload{}))
	assert.NoError(t, v.Validate(payload{Name: "x"}))
}
