package auth

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreLifecycle(t *testing.T) {
	s := NewSessionStore()

	token := s.Create(7)
	assert.Len(t, token, 32)

	id, ok := s.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	other := s.Create(7)
	assert.NotEqual(t, token, other)
	assert.Equal(t, 2, s.Len())

	s.Destroy(token)
	_, ok = s.Lookup(token)
	assert.False(t, ok)

	// unknown token
	s.Destroy("nope")
	assert.Equal(t, 1, s.Len())
}

func TestSessionStoreConcurrent(t *testing.T) {
	s := NewSessionStore()
	var wg sync.WaitGroup
	tokens := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := s.Create(int64(i))
			s.Lookup(tok)
			tokens <- tok
		}(i)
	}
	wg.Wait()
	close(tokens)

	seen := map[string]bool{}
	for tok := range tokens {
		assert.False(t, seen[tok])
		seen[tok] = true
	}
	assert.Equal(t, 100, s.Len())
}
