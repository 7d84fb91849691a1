package auth

import (
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
)

// UserIDKey is the session value holding the authenticated user's id
const UserIDKey = "user_id"

// CookieStore is a sessions.Store whose cookie carries only an opaque token;
// the token-to-user mapping stays server side in a SessionStore.
type CookieStore struct {
	Options  *sessions.Options
	sessions *SessionStore
}

// NewCookieStore returns a store issuing "Path=/; HttpOnly" cookies
func NewCookieStore(s *SessionStore) *CookieStore {
	return &CookieStore{
		Options: &sessions.Options{
			Path:     "/",
			HttpOnly: true,
		},
		sessions: s,
	}
}

// Get returns a session for the given name after adding it to the registry.
func (c *CookieStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(c, name)
}

// New returns a session for the given name without adding it to the registry.
// A cookie carrying a live token yields a session with IsNew false and the
// user id loaded.
func (c *CookieStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(c, name)
	opts := *c.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if userID, ok := c.sessions.Lookup(cookie.Value); ok {
		session.ID = cookie.Value
		session.Values[UserIDKey] = userID
		session.IsNew = false
	}
	return session, nil
}

// Save issues a token for a session without one. A negative MaxAge destroys
// the token and clears the cookie.
func (c *CookieStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options != nil && session.Options.MaxAge < 0 {
		if session.ID != "" {
			c.sessions.Destroy(session.ID)
		}
		http.SetCookie(w, &http.Cookie{
			Name:   session.Name(),
			Value:  "deleted",
			Path:   "/",
			MaxAge: -1,
		})
		return nil
	}

	if session.ID == "" {
		userID, ok := session.Values[UserIDKey].(int64)
		if !ok {
			return errors.New("session has no user id")
		}
		session.ID = c.sessions.Create(userID)
	}

	opts := c.Options
	if session.Options != nil {
		opts = session.Options
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), session.ID, opts))
	return nil
}
