package handler

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/atemonitor/atemap/auth"
	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/store"
	"github.com/atemonitor/atemap/util"
)

// loginPayload fields only need to be present; empty values fail as bad credentials
type loginPayload struct {
	Username *string `json:"username" validate:"required"`
	Password *string `json:"password" validate:"required"`
}

// Login handler
func Login(users *store.UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var data loginPayload
		if err := c.Bind(&data); err != nil {
			return errorResponse(c, err)
		}
		if err := c.Validate(data); err != nil {
			return errorResponse(c, store.ErrMissingCredentials)
		}

		user, err := users.Authenticate(c.Request().Context(), *data.Username, *data.Password)
		if err != nil {
			log.Warnf("Failed login attempt for user %s from %s", *data.Username, c.RealIP())
			return errorResponse(c, err)
		}

		sess, err := session.Get(util.SessionCookieName, c)
		if err != nil {
			return errorResponse(c, err)
		}
		// never reuse a token presented by the client
		sess.ID = ""
		sess.Options = &sessions.Options{
			Path:     "/",
			HttpOnly: true,
		}
		sess.Values[auth.UserIDKey] = user.ID
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			return errorResponse(c, err)
		}

		log.Infof("Logged in successfully user %s", user.Username)
		return c.JSON(http.StatusOK, model.LoginResponse{Status: "success", User: user.View()})
	}
}

// Logout handler. Always succeeds and clears the cookie.
func Logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := session.Get(util.SessionCookieName, c)
		if err != nil {
			return errorResponse(c, err)
		}
		sess.Options.MaxAge = -1
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, model.JSONResponse{Status: "success"})
	}
}

// Session returns the logged in user
func Session() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, model.SessionResponse{User: currentUser(c).View()})
	}
}
