// Package server implements the relay: a WebSocket server that replays its
// message history to each new connection and broadcasts every received
// message to all connected clients.
//
// The implementation is organized into specialized files for configuration,
// the hub that owns the connection set and message log, per-connection
// clients, routing, and HTTP handlers.
package server
