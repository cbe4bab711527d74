// Package blacklist tracks revoked access-token ids in Redis.
//
// Each entry lives exactly as long as the token it denies: the key TTL is
// derived from the token expiry, so the set is self-pruning and lookups stay
// O(1) regardless of how many tokens have ever been revoked. Adding an id
// never shortens an already-retained expiry.
package blacklist
