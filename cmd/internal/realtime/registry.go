package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// Registry tracks the live socket per (user, session).
//
// At most one socket exists per key: registering over a live one supersedes
// it. Per-user state has its own lock, so a slow user cannot serialize the
// whole registry, and supersede-and-replace is atomic per user.
type Registry struct {
	log *slog.Logger

	mu    sync.RWMutex
	users map[string]*userSessions
}

type userSessions struct {
	mu       sync.Mutex
	sessions map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{log: log, users: make(map[string]*userSessions)}
}

func (r *Registry) user(userID string, create bool) *userSessions {
	r.mu.RLock()
	us := r.users[userID]
	r.mu.RUnlock()
	if us != nil || !create {
		return us
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if us = r.users[userID]; us == nil {
		us = &userSessions{sessions: make(map[string]*Client)}
		r.users[userID] = us
	}
	return us
}

// Register binds the client to its (user, session) key. A previous socket on
// the same key gets a superseded push and is closed; the new socket replaces
// it in one step.
func (r *Registry) Register(c *Client, now time.Time) {
	us := r.user(c.UserID, true)

	us.mu.Lock()
	prev := us.sessions[c.SessionID]
	us.sessions[c.SessionID] = c
	us.mu.Unlock()

	if prev != nil && prev != c {
		prev.TryEnqueue(NewLogoutEnvelope(ReasonSuperseded, now))
		prev.Close()
		r.log.Info("realtime.registry.supersede", "user_id", c.UserID, "session_id", c.SessionID)
	}
}

// Unregister removes the client, but only if it is still the registered
// socket for its key. A socket that was superseded must not evict its
// replacement on the way out.
func (r *Registry) Unregister(c *Client) {
	us := r.user(c.UserID, false)
	if us == nil {
		return
	}

	us.mu.Lock()
	if us.sessions[c.SessionID] == c {
		delete(us.sessions, c.SessionID)
	}
	us.mu.Unlock()
}

// SendTo offers an envelope to one session's socket. Delivery is best-effort:
// no socket, a closed socket, or a full queue all report false.
func (r *Registry) SendTo(userID, sessionID string, env Envelope) bool {
	us := r.user(userID, false)
	if us == nil {
		return false
	}

	us.mu.Lock()
	c := us.sessions[sessionID]
	us.mu.Unlock()

	return c.TryEnqueue(env)
}

// ForceLogout pushes a logout to one session's socket. The gateway closes the
// socket after writing the push; if the push cannot be queued the socket is
// closed immediately instead.
func (r *Registry) ForceLogout(userID, sessionID, reason string, now time.Time) {
	us := r.user(userID, false)
	if us == nil {
		return
	}

	us.mu.Lock()
	c := us.sessions[sessionID]
	us.mu.Unlock()

	r.pushLogout(c, reason, now)
}

// ForceLogoutAll pushes a logout to every live socket the user has.
func (r *Registry) ForceLogoutAll(userID, reason string, now time.Time) {
	us := r.user(userID, false)
	if us == nil {
		return
	}

	us.mu.Lock()
	clients := make([]*Client, 0, len(us.sessions))
	for _, c := range us.sessions {
		clients = append(clients, c)
	}
	us.mu.Unlock()

	for _, c := range clients {
		r.pushLogout(c, reason, now)
	}
}

func (r *Registry) pushLogout(c *Client, reason string, now time.Time) {
	if c == nil {
		return
	}
	if !c.TryEnqueue(NewLogoutEnvelope(reason, now)) {
		c.Close()
	}
}

// ActiveCount reports the number of live sockets across all users.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, us := range r.users {
		us.mu.Lock()
		n += len(us.sessions)
		us.mu.Unlock()
	}
	return n
}

// CloseAll closes every live socket, used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	users := r.users
	r.users = make(map[string]*userSessions)
	r.mu.Unlock()

	for _, us := range users {
		us.mu.Lock()
		for _, c := range us.sessions {
			c.Close()
		}
		us.mu.Unlock()
	}
}
