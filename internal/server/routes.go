// Package server wires HTTP handlers into a ServeMux for the relay.
package server

import "net/http"

// SetupRoutes returns a ServeMux with the relay endpoint on "/" and the
// health, stats, and test page routes.
func SetupRoutes(r *Relay) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", r.WebSocketHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/stats", r.StatsHandler)
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
