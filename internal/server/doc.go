// Package server implements the relay's HTTP API
//
// It exposes flow runs as a JSON request/response endpoint, as a
// text/event-stream response, and over a WebSocket, along with health and
// Prometheus metrics endpoints
package server
