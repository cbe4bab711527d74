package realtime

import "sync"

// Client represents one connected websocket, bound to an authenticated
// (user, session) pair.
//
// Send is intentionally NOT closed by the server, so concurrent pushers never
// panic; done signals goroutines to stop, and Close is idempotent.
type Client struct {
	UserID    string
	SessionID string
	Send      chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(userID, sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = wsDefaultSendQueueSize
	}
	return &Client{
		UserID:    userID,
		SessionID: sessionID,
		Send:      make(chan Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent). It does NOT
// close Send, keeping pushes safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// TryEnqueue offers an envelope without blocking. It reports false when the
// client is gone or its queue is full.
func (c *Client) TryEnqueue(env Envelope) bool {
	if c == nil {
		return false
	}
	// Check done on its own first: after Close both the done case and a
	// non-full Send case are ready, and a combined select would pick
	// randomly between them.
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}
