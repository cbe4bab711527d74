// Package password implements Argon2id password hashing and verification
// using the PHC string format, with parameters tunable via environment.
package password
