// Package state holds the in-memory last-known state of every vehicle.
package state
