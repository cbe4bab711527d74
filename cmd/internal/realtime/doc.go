// Package realtime maintains the live websocket connection per device session
// and pushes session-lifecycle events to it.
//
// The registry is keyed by (user, session): one socket per device session,
// with reconnects superseding the previous socket. Its only must-deliver
// message is the logout push, which tells a device its session died before
// its access token expires.
package realtime
