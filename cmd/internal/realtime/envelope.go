package realtime

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Wire protocol version carried in every envelope.
const Version = 1

// Envelope types.
const (
	// TypeReady is sent by the server once the socket is authenticated and
	// registered.
	TypeReady = "ready"
	// TypeLogout is pushed by the server when the session is revoked. The
	// server closes the socket after delivering it.
	TypeLogout = "logout"
	// TypePing/TypePong are the application-level liveness probe.
	TypePing = "ping"
	TypePong = "pong"
	// TypeError reports a per-message failure without closing the socket.
	TypeError = "error"
)

// Envelope is the framed message exchanged on the socket.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks structural fields of an inbound envelope.
func (e Envelope) Validate() error {
	if e.V != Version {
		return errors.New("unsupported version")
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing type")
	}
	return nil
}

// ReadyPayload acknowledges registration.
type ReadyPayload struct {
	SessionID string `json:"session_id"`
}

// LogoutPayload explains why the session ended.
type LogoutPayload struct {
	Reason string `json:"reason"`
}

// Logout reasons.
const (
	ReasonUserLogout = "user_logout"
	ReasonLogoutAll  = "logout_all"
	ReasonSuperseded = "superseded"
	ReasonRevoked    = "revoked"
)

// ErrorPayload reports a per-message failure.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) Envelope {
	return Envelope{V: Version, Type: typ, TS: ts, Payload: payload}
}

// NewLogoutEnvelope builds the logout push for a revoked session.
func NewLogoutEnvelope(reason string, now time.Time) Envelope {
	p, _ := json.Marshal(LogoutPayload{Reason: reason})
	return newEnvelope(TypeLogout, p, now)
}
