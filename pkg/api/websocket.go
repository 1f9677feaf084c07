package api

type (
	// SocketFrameType identifies the kind of frame sent over a run socket
	SocketFrameType string

	// SocketFrame is one message sent to a WebSocket caller
	SocketFrame struct {
		Type   SocketFrameType `json:"type"`
		Data   any             `json:"data,omitempty"`
		Error  string          `json:"error,omitempty"`
		Reason string          `json:"reason,omitempty"`
	}
)

const (
	SocketFrameUpdate SocketFrameType = "update"
	SocketFrameError  SocketFrameType = "error"
	SocketFrameClose  SocketFrameType = "close"
)
