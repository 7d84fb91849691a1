package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/atemonitor/atemap/auth"
	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/store"
	"github.com/atemonitor/atemap/upload"
)

// Routes registers the API on e
func Routes(e *echo.Echo, users *store.UserStore, sessions *auth.SessionStore, sink upload.Sink) {
	gate := auth.NewGate(sessions, users)
	admin := NeedsAdmin(gate)

	e.POST("/api/login", Login(users), ContentTypeJson)
	e.POST("/api/logout", Logout())
	e.GET("/api/session", Session(), ValidSession(gate))

	e.POST("/api/register", Register(users), admin, ContentTypeJson)
	e.GET("/api/users", Users(users), admin)
	e.GET("/api/users/:id", GetUser(users), admin)
	e.PUT("/api/users/:id", UpdateUser(users), admin, ContentTypeJson)
	e.DELETE("/api/users/:id", RemoveUser(users), admin)

	e.POST("/upload_runs", UploadRuns(sink), NeedsPermission(gate, model.PermissionUploadRuns))
}
