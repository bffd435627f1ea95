// Package audit implements the session journal for the vehicle health hub.
//
// The journal is append-only JSONL: one line per vehicle or monitor connect
// and disconnect, per rejected producer message, and per monitor the hub
// drops. Files rotate through lumberjack.
package audit
