// Package tokens issues and verifies short-lived JWT access tokens and
// generates opaque refresh secrets.
//
// Access-token verification is split in two composed steps: Codec.Parse is
// pure (signature, structure, expiry) and Validator adds the blacklist
// lookup. Neither step substitutes for the other; a cryptographically valid
// but blacklisted token is invalid.
package tokens
