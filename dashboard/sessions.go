package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// sessionTTL is the dashboard login lifetime. Only /api/stats extends it.
const sessionTTL = time.Hour

// sessionStore holds the operator login tokens. Tokens are opaque UUIDs
// mapped to their expiry; expired entries are dropped lazily on access.
type sessionStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	clock  clockwork.Clock
}

func newSessionStore(clock clockwork.Clock) *sessionStore {
	return &sessionStore{tokens: make(map[string]time.Time), clock: clock}
}

// Create mints a new token valid for sessionTTL.
func (s *sessionStore) Create() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = s.clock.Now().Add(sessionTTL)
	s.mu.Unlock()
	return token
}

// Valid reports whether token exists and has not expired.
func (s *sessionStore) Valid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked(token)
}

// Extend validates token and, on success, pushes its expiry out by a full
// sessionTTL from now.
func (s *sessionStore) Extend(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validLocked(token) {
		return false
	}
	s.tokens[token] = s.clock.Now().Add(sessionTTL)
	return true
}

// Delete removes token. Missing tokens are ignored.
func (s *sessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func (s *sessionStore) validLocked(token string) bool {
	expires, ok := s.tokens[token]
	if !ok {
		return false
	}
	if s.clock.Now().After(expires) {
		delete(s.tokens, token)
		return false
	}
	return true
}
