package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/flowrelay/internal/classify"
	"github.com/kode4food/flowrelay/pkg/api"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		kind      classify.Kind
		streamURL string
		text      string
	}{
		{
			name: "stream url",
			body: `{"outputs":[{"outputs":[{"artifacts":` +
				`{"stream_url":"https://x/stream"}}]}]}`,
			kind:      classify.HasStreamURL,
			streamURL: "https://x/stream",
		},
		{
			name: "controller message path",
			body: `{"outputs":[{"outputs":[{"outputs":` +
				`{"message":{"text":"hello"}}}]}]}`,
			kind: classify.HasDirectResult,
			text: "hello",
		},
		{
			name: "results message path",
			body: `{"outputs":[{"outputs":[{"results":` +
				`{"message":{"text":"from results"}}}]}]}`,
			kind: classify.HasDirectResult,
			text: "from results",
		},
		{
			name: "messages list path",
			body: `{"outputs":[{"outputs":[{"messages":` +
				`[{"message":"listed"}]}]}]}`,
			kind: classify.HasDirectResult,
			text: "listed",
		},
		{
			name: "outputs without text",
			body: `{"outputs":[{"outputs":[]}]}`,
			kind: classify.HasDirectResult,
		},
		{
			name: "empty stream url falls through",
			body: `{"outputs":[{"outputs":[{"artifacts":{"stream_url":""},` +
				`"outputs":{"message":{"text":"direct"}}}]}]}`,
			kind: classify.HasDirectResult,
			text: "direct",
		},
		{
			name: "missing outputs",
			body: `{"session_id":"abc"}`,
			kind: classify.Unrecognized,
		},
		{
			name: "null outputs",
			body: `{"outputs":null}`,
			kind: classify.Unrecognized,
		},
		{
			name: "invalid json",
			body: `not json`,
			kind: classify.Unrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape := classify.Classify(api.RunResponse(tt.body))
			assert.Equal(t, tt.kind, shape.Kind)
			assert.Equal(t, tt.streamURL, shape.StreamURL)
			assert.Equal(t, tt.text, shape.Text)
		})
	}
}

func TestClassifyKeepsOutputs(t *testing.T) {
	shape := classify.Classify(api.RunResponse(`{"outputs":[{"a":1}]}`))
	assert.Equal(t, []any{map[string]any{"a": float64(1)}}, shape.Output)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "stream_url", classify.HasStreamURL.String())
	assert.Equal(t, "direct_result", classify.HasDirectResult.String())
	assert.Equal(t, "unrecognized", classify.Unrecognized.String())
	assert.Equal(t, "unrecognized", classify.Kind(42).String())
}
