// Package api implements the hub's HTTP surface.
//
// It serves the read API (health, vehicle list, single vehicle) in the
// {result,data,correlationId} envelope, exposes /metrics, and mounts the
// /vehicle and /monitor WebSocket endpoints on the same listener.
package api
