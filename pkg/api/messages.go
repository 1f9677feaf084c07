package api

type (
	// RunFlowRequest is the caller's request to execute the configured flow
	RunFlowRequest struct {
		InputValue string `json:"inputValue"`
		InputType  IOType `json:"inputType,omitempty"`
		OutputType IOType `json:"outputType,omitempty"`
		Stream     bool   `json:"stream,omitempty"`
	}

	// RunFlowResponse is returned when a non-streaming run succeeds
	RunFlowResponse struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}

	// StreamError is the SSE data frame sent when a stream reports an error
	StreamError struct {
		Error string `json:"error"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
)

// NewErrorResponse builds a failed response carrying msg
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   msg,
	}
}
