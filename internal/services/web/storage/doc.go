// Package storage declares persistence for browser-session state owned by
// the web service: provider tokens and the new-user hint, both keyed by the
// browser id carried in the session cookie.
//
// Nothing here is a source of truth for users or profiles. Losing a record
// only means the browser has to sign in again.
package storage
