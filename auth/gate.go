package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/gommon/log"

	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/store"
	"github.com/atemonitor/atemap/util"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
)

// UserGetter resolves a user id to a record
type UserGetter interface {
	Get(ctx context.Context, id int64) (*model.User, error)
}

// Gate resolves the requesting user and checks capabilities
type Gate struct {
	sessions *SessionStore
	users    UserGetter
}

func NewGate(sessions *SessionStore, users UserGetter) *Gate {
	return &Gate{sessions: sessions, users: users}
}

// CurrentUser returns the user owning the request's session cookie. It
// reports false when the cookie is absent, the token is unknown or the user
// no longer exists.
func (g *Gate) CurrentUser(r *http.Request) (*model.User, bool) {
	cookie, err := r.Cookie(util.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	userID, ok := g.sessions.Lookup(cookie.Value)
	if !ok {
		return nil, false
	}
	user, err := g.users.Get(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			log.Error("Cannot load session user: ", err)
		}
		return nil, false
	}
	return user, true
}

// RequirePermission passes admins unconditionally; other users need
// capability set to true in their permission map.
func (g *Gate) RequirePermission(r *http.Request, capability string) (*model.User, error) {
	user, ok := g.CurrentUser(r)
	if !ok {
		return nil, ErrAuthenticationRequired
	}
	if user.Admin || user.Permissions.Has(capability) {
		return user, nil
	}
	return nil, ErrForbidden
}

// RequireAdmin needs is_admin regardless of the permission map
func (g *Gate) RequireAdmin(r *http.Request) (*model.User, error) {
	user, ok := g.CurrentUser(r)
	if !ok {
		return nil, ErrAuthenticationRequired
	}
	if !user.Admin {
		return nil, ErrForbidden
	}
	return user, nil
}
