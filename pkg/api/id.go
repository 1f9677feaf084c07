package api

import "github.com/google/uuid"

type (
	// FlowID identifies a server-defined flow on the upstream service
	FlowID string

	// CollectionID identifies the upstream project that owns a flow
	CollectionID string

	// SessionID identifies one caller-initiated flow execution
	SessionID string
)

// NewSessionID returns a random session identifier
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}
