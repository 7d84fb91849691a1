package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/store"
)

type registerPayload struct {
	Username    string            `json:"username" validate:"required"`
	Password    string            `json:"password" validate:"required"`
	Permissions model.Permissions `json:"permissions"`
	Admin       bool              `json:"is_admin"`
}

// updatePayload fields are nil when absent from the request
type updatePayload struct {
	Username    *string           `json:"username"`
	Password    *string           `json:"password"`
	Admin       *bool             `json:"is_admin"`
	Permissions model.Permissions `json:"permissions"`
}

func userID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

// Register creates a user
func Register(users *store.UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var data registerPayload
		if err := c.Bind(&data); err != nil {
			return errorResponse(c, err)
		}
		if err := c.Validate(data); err != nil {
			return errorResponse(c, store.ErrMissingCredentials)
		}

		id, err := users.Create(c.Request().Context(), data.Username, data.Password, data.Permissions, data.Admin)
		if err != nil {
			return errorResponse(c, err)
		}

		log.Infof("Created user %s (id %d) by %s", data.Username, id, currentUsername(c))
		return c.JSON(http.StatusCreated, model.JSONResponse{Status: "user_created"})
	}
}

// Users lists all users
func Users(users *store.UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := users.List(c.Request().Context())
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, model.UserListResponse{Users: list})
	}
}

// GetUser returns a single user
func GetUser(users *store.UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := userID(c)
		if err != nil {
			return errorResponse(c, err)
		}
		user, err := users.Get(c.Request().Context(), id)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, model.UserResponse{User: user.View()})
	}
}

// UpdateUser applies the fields present in the request body
func UpdateUser(users *store.UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := userID(c)
		if err != nil {
			return errorResponse(c, err)
		}

		var data updatePayload
		if err := c.Bind(&data); err != nil {
			return errorResponse(c, err)
		}

		patch := model.UserPatch{
			Username:    data.Username,
			Password:    data.Password,
			Admin:       data.Admin,
			Permissions: data.Permissions,
		}
		if err := users.Update(c.Request().Context(), id, patch); err != nil {
			return errorResponse(c, err)
		}

		log.Infof("Updated user %d by %s", id, currentUsername(c))
		return c.JSON(http.StatusOK, model.JSONResponse{Status: "updated"})
	}
}

// RemoveUser deletes a user. Sessions of the user stay in the table and fail
// the gate once the record is gone.
func RemoveUser(users *store.UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := userID(c)
		if err != nil {
			return errorResponse(c, err)
		}

		if err := users.Delete(c.Request().Context(), id); err != nil {
			return errorResponse(c, err)
		}

		log.Infof("Removed user %d by %s", id, currentUsername(c))
		return c.JSON(http.StatusOK, model.JSONResponse{Status: "deleted"})
	}
}
