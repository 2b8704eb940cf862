// Package session owns RCON transport settings shared by the client and its callers.
//
// Ownership boundary:
// - dial/request/write timeouts
// - reconnect delay policy
// - optional TLS transport validation
package session
