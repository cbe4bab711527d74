// Package loginguard throttles credential guessing with a sliding-window
// failed-attempt counter per account.
//
// Failures are recorded as append-only rows; lockout is a question asked at
// login time ("how many failures inside the window?"), not a state flipped on
// the account. A successful login clears the account's window.
package loginguard
