// Package session stores saved chat conversations.
//
// Each conversation is one JSON file named after its session ID inside a
// private directory (mode 0700, files 0600). IDs have the form
// YYYY-MM-DD_HHMMSS_random and are validated before any path is built, so
// a client can never address a file outside the store.
//
// The stored document is kept verbatim. Conversation is a typed view used
// for listing and by the export renderers.
package session
