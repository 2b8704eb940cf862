// Package rcon is the RCON connection and correlation engine.
//
// Ownership boundary:
// - TCP session lifecycle: connect, authenticate, lazy reconnect (Client)
// - background frame reader and answer correlation (Correlator, PendingStore)
// - failure classification surfaced through Config.OnFailure and Metrics
//
// One Client owns one connection at a time. Writes are serialized; waits for
// answers happen outside the write lock so concurrent callers do not block
// each other's sends.
package rcon
