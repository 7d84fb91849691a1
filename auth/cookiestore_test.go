package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieStoreIssuesToken(t *testing.T) {
	table := NewSessionStore()
	cs := NewCookieStore(table)

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	rec := httptest.NewRecorder()

	sess := sessions.NewSession(cs, "session")
	sess.Options = &sessions.Options{Path: "/", HttpOnly: true}
	sess.Values[UserIDKey] = int64(3)
	require.NoError(t, sess.Save(req, rec))

	require.NotEmpty(t, sess.ID)
	id, ok := table.Lookup(sess.ID)
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, "session="+sess.ID+"; Path=/; HttpOnly", rec.Header().Get("Set-Cookie"))
}

func TestCookieStoreSaveWithoutUser(t *testing.T) {
	cs := NewCookieStore(NewSessionStore())
	sess := sessions.NewSession(cs, "session")
	sess.Options = &sessions.Options{Path: "/"}
	err := sess.Save(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Error(t, err)
}

func TestCookieStoreLoadsAndClears(t *testing.T) {
	table := NewSessionStore()
	cs := NewCookieStore(table)
	token := table.Create(5)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})

	sess, err := cs.Get(req, "session")
	require.NoError(t, err)
	assert.False(t, sess.IsNew)
	assert.Equal(t, token, sess.ID)
	assert.Equal(t, int64(5), sess.Values[UserIDKey])

	rec := httptest.NewRecorder()
	sess.Options.MaxAge = -1
	require.NoError(t, sess.Save(req, rec))

	_, ok := table.Lookup(token)
	assert.False(t, ok)
	assert.Equal(t, "session=deleted; Path=/; Max-Age=0", rec.Header().Get("Set-Cookie"))
}

func TestCookieStoreUnknownToken(t *testing.T) {
	cs := NewCookieStore(NewSessionStore())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "stale"})

	sess, err := cs.New(req, "session")
	require.NoError(t, err)
	assert.True(t, sess.IsNew)
	assert.Empty(t, sess.ID)
	assert.Empty(t, sess.Values)
}
