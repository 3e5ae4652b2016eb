package session

import (
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := New(cfg)
	r.now = clk.Now
	return r, clk
}

func TestCreateAndResolve(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: DefaultTTL})

	token, err := r.Create("alice", model.UserRoleStudent)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}

	id, ok := r.Resolve(token)
	if !ok {
		t.Fatal("expected token to resolve")
	}
	if id.Username != "alice" || id.Role != model.UserRoleStudent {
		t.Errorf("unexpected identity %+v", id)
	}

	for _, bad := range []string{"", "nope", token + "x"} {
		if _, ok := r.Resolve(bad); ok {
			t.Errorf("Resolve(%q) should fail", bad)
		}
	}
}

func TestTokensAreUnique(t *testing.T) {
	r, _ := newTestRegistry(t, Config{})
	const n = 2000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		token, err := r.Create("alice", model.UserRoleStudent)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token after %d generations", i)
		}
		seen[token] = true
	}
	if r.Len() != n {
		t.Errorf("expected %d sessions, got %d", n, r.Len())
	}
}

func TestDestroy(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Hour})
	token, _ := r.Create("alice", model.UserRoleStudent)

	r.Destroy(token)
	if _, ok := r.Resolve(token); ok {
		t.Error("resolve after destroy should fail")
	}
	// Idempotent.
	r.Destroy(token)
	r.Destroy("never-existed")
}

func TestDestroyUser(t *testing.T) {
	r, _ := newTestRegistry(t, Config{})
	a1, _ := r.Create("alice", model.UserRoleStudent)
	a2, _ := r.Create("alice", model.UserRoleStudent)
	b, _ := r.Create("bob", model.UserRoleStudent)

	if n := r.DestroyUser("alice"); n != 2 {
		t.Errorf("expected 2 sessions dropped, got %d", n)
	}
	for _, tok := range []string{a1, a2} {
		if _, ok := r.Resolve(tok); ok {
			t.Error("alice session survived DestroyUser")
		}
	}
	if _, ok := r.Resolve(b); !ok {
		t.Error("bob session was dropped")
	}
}

func TestExpiry(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		steps    []time.Duration // advance, then resolve
		wantLive []bool
	}{
		{"fixed expires", Config{TTL: time.Hour}, []time.Duration{30 * time.Minute, 31 * time.Minute}, []bool{true, false}},
		{"sliding extends", Config{TTL: time.Hour, Sliding: true}, []time.Duration{50 * time.Minute, 50 * time.Minute, 50 * time.Minute}, []bool{true, true, true}},
		{"sliding lapses", Config{TTL: time.Hour, Sliding: true}, []time.Duration{50 * time.Minute, 61 * time.Minute}, []bool{true, false}},
		{"no expiry", Config{}, []time.Duration{24 * 365 * time.Hour}, []bool{true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, clk := newTestRegistry(t, tt.cfg)
			token, _ := r.Create("alice", model.UserRoleStudent)
			for i, d := range tt.steps {
				clk.Advance(d)
				_, ok := r.Resolve(token)
				if ok != tt.wantLive[i] {
					t.Fatalf("step %d: live = %v, want %v", i, ok, tt.wantLive[i])
				}
			}
		})
	}
}

func TestExpiredSessionIsRemoved(t *testing.T) {
	r, clk := newTestRegistry(t, Config{TTL: time.Minute})
	token, _ := r.Create("alice", model.UserRoleStudent)
	clk.Advance(2 * time.Minute)

	if _, ok := r.Resolve(token); ok {
		t.Fatal("expired token resolved")
	}
	if r.Len() != 0 {
		t.Errorf("expected expired entry to be removed, %d left", r.Len())
	}
}

func TestQuizTimer(t *testing.T) {
	r, clk := newTestRegistry(t, Config{TTL: time.Hour})
	token, _ := r.Create("alice", model.UserRoleStudent)

	if _, ok := r.QuizTimer(token); ok {
		t.Error("fresh session should have no timer")
	}
	start := clk.Now()
	if !r.AttachQuizTimer(token, start) {
		t.Fatal("AttachQuizTimer failed on live session")
	}
	got, ok := r.QuizTimer(token)
	if !ok || !got.Equal(start) {
		t.Errorf("QuizTimer = %v %v, want %v", got, ok, start)
	}

	r.DetachQuizTimer(token)
	if _, ok := r.QuizTimer(token); ok {
		t.Error("timer survived detach")
	}

	if r.AttachQuizTimer("unknown", start) {
		t.Error("AttachQuizTimer succeeded for unknown token")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r, _ := newTestRegistry(t, Config{TTL: time.Hour})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tok, err := r.Create("u", model.UserRoleStudent)
				if err != nil {
					t.Error(err)
					return
				}
				r.AttachQuizTimer(tok, time.Now())
				r.Resolve(tok)
				r.Destroy(tok)
			}
		}()
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}
