package api

import "maps"

type (
	// IOType names an input or output channel understood by the upstream
	IOType string

	// Tweaks maps an upstream component identifier to override settings.
	// The relay passes them through without interpretation
	Tweaks map[string]any

	// RunRequest describes one flow execution. It is built fresh per call
	// and must not be modified after construction
	RunRequest struct {
		SessionID       SessionID
		FlowID          FlowID
		CollectionID    CollectionID
		InputValue      string
		InputType       IOType
		OutputType      IOType
		StreamRequested bool
		Tweaks          Tweaks
	}

	// RunBody is the JSON document posted to the upstream run endpoint
	RunBody struct {
		InputValue string `json:"input_value"`
		InputType  IOType `json:"input_type"`
		OutputType IOType `json:"output_type"`
		Tweaks     Tweaks `json:"tweaks"`
	}

	// RunResponse is the raw, loosely-typed upstream reply
	RunResponse []byte
)

const (
	IOTypeChat IOType = "chat"
	IOTypeText IOType = "text"
	IOTypeAny  IOType = "any"

	DefaultIOType = IOTypeChat
)

// NewRunRequest builds a RunRequest with a fresh session id, applying the
// default input and output types when they are empty. The tweaks are copied
func NewRunRequest(
	flowID FlowID, collectionID CollectionID, input string,
	inputType, outputType IOType, stream bool, tweaks Tweaks,
) *RunRequest {
	if inputType == "" {
		inputType = DefaultIOType
	}
	if outputType == "" {
		outputType = DefaultIOType
	}
	return &RunRequest{
		SessionID:       NewSessionID(),
		FlowID:          flowID,
		CollectionID:    collectionID,
		InputValue:      input,
		InputType:       inputType,
		OutputType:      outputType,
		StreamRequested: stream,
		Tweaks:          tweaks.Clone(),
	}
}

// Body returns the upstream JSON body for this request
func (r *RunRequest) Body() RunBody {
	return RunBody{
		InputValue: r.InputValue,
		InputType:  r.InputType,
		OutputType: r.OutputType,
		Tweaks:     r.Tweaks.Clone(),
	}
}

// Clone returns a shallow copy of the tweaks. A nil receiver yields an empty
// map so the upstream always receives an object
func (t Tweaks) Clone() Tweaks {
	if t == nil {
		return Tweaks{}
	}
	return maps.Clone(t)
}

// MarshalJSON emits the raw bytes, or null when empty
func (r RunResponse) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

