// Package auth verifies bearer tokens for the hub's read API.
//
// Tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM public
// key) and carry "sub", "roles" and "scopes" claims. The WebSocket
// endpoints are not guarded.
package auth
