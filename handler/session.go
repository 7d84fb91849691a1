package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/atemonitor/atemap/auth"
	"github.com/atemonitor/atemap/model"
)

const userContextKey = "user"

// ValidSession rejects requests without a live session with 401
func ValidSession(gate *auth.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := gate.CurrentUser(c.Request())
			if !ok {
				return errorResponse(c, auth.ErrAuthenticationRequired)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// NeedsAdmin allows only admins; 401 without a session, 403 for other users
func NeedsAdmin(gate *auth.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := gate.RequireAdmin(c.Request())
			if err != nil {
				return errorResponse(c, err)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// NeedsPermission allows admins and users holding capability
func NeedsPermission(gate *auth.Gate, capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := gate.RequirePermission(c.Request(), capability)
			if err != nil {
				return errorResponse(c, err)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// currentUser returns the user stored by the session middlewares
func currentUser(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}

func currentUsername(c echo.Context) string {
	if user := currentUser(c); user != nil {
		return user.Username
	}
	return ""
}
