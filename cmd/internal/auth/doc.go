// Package auth orchestrates the session lifecycle: login, refresh rotation,
// and logout across the token codec, the refresh-token store, the access
// blacklist, the lockout guard, and the realtime push registry.
package auth
