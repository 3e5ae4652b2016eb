// Package session keeps the process-wide table of live login sessions.
//
// A Registry maps opaque tokens to the identity that logged in with them,
// plus the ephemeral quiz timer. Nothing is persisted: a restart logs
// everyone out.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Config is the expiry policy of a Registry.
type Config struct {
	// TTL is how long a session lives after creation (or after its last
	// use when Sliding is set). Zero disables expiry.
	TTL time.Duration
	// Sliding extends the expiry on every successful Resolve.
	Sliding bool
}

type entry struct {
	identity  model.Identity
	expiresAt time.Time
	quizStart *time.Time
}

// Registry is a concurrency-safe token -> session map.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	cfg      Config
	now      func() time.Time
}

// New creates an empty Registry with the given expiry policy.
func New(cfg Config) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Create starts a session for username with the role read from the
// user record and returns its token.
func (r *Registry) Create(username string, role model.UserRole) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &entry{identity: model.Identity{Username: username, Role: role}}
	if r.cfg.TTL > 0 {
		e.expiresAt = r.now().Add(r.cfg.TTL)
	}
	r.sessions[token] = e
	slog.Debug("session created", "username", username, "role", role)
	return token, nil
}

// lookup returns the live entry for token, deleting it if it has
// expired. Callers must hold r.mu.
func (r *Registry) lookup(token string) (*entry, bool) {
	e, ok := r.sessions[token]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && r.now().After(e.expiresAt) {
		delete(r.sessions, token)
		slog.Debug("session expired", "username", e.identity.Username)
		return nil, false
	}
	return e, true
}

// Resolve returns the identity behind token. Unknown and expired tokens
// resolve to false; expired ones are removed.
func (r *Registry) Resolve(token string) (model.Identity, bool) {
	if token == "" {
		return model.Identity{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(token)
	if !ok {
		return model.Identity{}, false
	}
	if r.cfg.Sliding && r.cfg.TTL > 0 {
		e.expiresAt = r.now().Add(r.cfg.TTL)
	}
	return e.identity, true
}

// Destroy removes a session. Unknown tokens are ignored.
func (r *Registry) Destroy(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}

// DestroyUser removes every session belonging to username and returns
// how many were dropped.
func (r *Registry) DestroyUser(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for token, e := range r.sessions {
		if e.identity.Username == username {
			delete(r.sessions, token)
			n++
		}
	}
	return n
}

// AttachQuizTimer records when the session's holder started the quiz.
// It reports false if the session is not live.
func (r *Registry) AttachQuizTimer(token string, start time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(token)
	if !ok {
		return false
	}
	e.quizStart = &start
	return true
}

// QuizTimer returns the quiz start time attached to the session.
func (r *Registry) QuizTimer(token string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(token)
	if !ok || e.quizStart == nil {
		return time.Time{}, false
	}
	return *e.quizStart, true
}

// DetachQuizTimer clears the quiz start time, if any.
func (r *Registry) DetachQuizTimer(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[token]; ok {
		e.quizStart = nil
	}
}

// Len returns the number of stored sessions, including expired ones not
// yet touched.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
