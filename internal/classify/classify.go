// Package classify inspects loosely-typed upstream run responses and sorts
// them into the few shapes the relay knows how to handle
package classify

import (
	"github.com/tidwall/gjson"

	"github.com/kode4food/flowrelay/pkg/api"
)

type (
	// Kind tags the shape of an upstream response
	Kind int

	// Shape is the result of classifying one upstream response
	Shape struct {
		Output    any
		StreamURL string
		Text      string
		Kind      Kind
	}
)

const (
	Unrecognized Kind = iota
	HasStreamURL
	HasDirectResult
)

const (
	// StreamURLPath is where the upstream places the event endpoint for
	// streaming runs
	StreamURLPath = "outputs.0.outputs.0.artifacts.stream_url"

	outputsPath = "outputs"
)

// TextPaths are probed in order for a human-readable result
var TextPaths = []string{
	"outputs.0.outputs.0.outputs.message.text",
	"outputs.0.outputs.0.results.message.text",
	"outputs.0.outputs.0.outputs.message.message",
	"outputs.0.outputs.0.messages.0.message",
	"outputs.0.outputs.0.artifacts.message",
}

var kindNames = map[Kind]string{
	Unrecognized:    "unrecognized",
	HasStreamURL:    "stream_url",
	HasDirectResult: "direct_result",
}

// Classify sorts resp into a Shape. A stream URL wins over a direct result.
// A response with outputs but no recognizable text is still a direct result,
// carrying an empty Text
func Classify(resp api.RunResponse) Shape {
	if !gjson.ValidBytes(resp) {
		return Shape{Kind: Unrecognized}
	}
	doc := gjson.ParseBytes(resp)

	if u := doc.Get(StreamURLPath); u.Type == gjson.String && u.Str != "" {
		return Shape{
			Kind:      HasStreamURL,
			StreamURL: u.Str,
		}
	}

	outputs := doc.Get(outputsPath)
	if !outputs.Exists() || outputs.Type == gjson.Null {
		return Shape{Kind: Unrecognized}
	}

	return Shape{
		Kind:   HasDirectResult,
		Output: outputs.Value(),
		Text:   findText(doc),
	}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unrecognized]
}

func findText(doc gjson.Result) string {
	for _, path := range TextPaths {
		res := doc.Get(path)
		if res.Type == gjson.String && res.Str != "" {
			return res.Str
		}
	}
	return ""
}
