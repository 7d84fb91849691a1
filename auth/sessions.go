// Package auth holds the session table and the authorization gate.
package auth

import (
	"sync"

	"github.com/atemonitor/atemap/util"
)

// SessionStore maps opaque session tokens to user ids. Tokens never expire;
// they live until logout or process exit.
type SessionStore struct {
	mu     sync.RWMutex
	tokens map[string]int64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{tokens: make(map[string]int64)}
}

// Create issues a new token for userID. An existing token is never reused.
func (s *SessionStore) Create(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		token := util.RandomHex()
		if _, taken := s.tokens[token]; taken {
			continue
		}
		s.tokens[token] = userID
		return token
	}
}

// Destroy removes token. Unknown tokens are ignored.
func (s *SessionStore) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

func (s *SessionStore) Lookup(token string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	return id, ok
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
