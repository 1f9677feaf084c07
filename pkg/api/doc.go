// Package api defines the wire types shared by the relay and its callers
//
// This package contains the upstream run request and response types, the
// caller-facing HTTP messages, and the WebSocket frame envelopes
package api
