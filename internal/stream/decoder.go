package stream

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

type (
	// Event is one decoded server-sent event
	Event struct {
		ID    string
		Type  string
		Data  string
		Retry time.Duration
	}

	// Decoder reads text/event-stream framing from a reader
	Decoder struct {
		r      *bufio.Reader
		lastID string
	}
)

const (
	// EventMessage is the type of events sent without an event field
	EventMessage = "message"

	// EventClose is the named event the upstream sends at end of stream
	EventClose = "close"

	readBufferSize = 64 * 1024

	// MaxLineSize bounds a single event-stream line
	MaxLineSize = 1024 * 1024
)

// NewDecoder creates a Decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r: bufio.NewReaderSize(r, readBufferSize),
	}
}

// Next blocks until a complete event has been read. An event still being
// assembled when the reader ends is discarded and the read error returned
func (d *Decoder) Next() (*Event, error) {
	var data strings.Builder
	var typ string
	var retry time.Duration
	hasData := false

	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}

		if line == "" {
			if !hasData && typ == "" {
				continue
			}
			if typ == "" {
				typ = EventMessage
			}
			return &Event{
				ID:    d.lastID,
				Type:  typ,
				Data:  data.String(),
				Retry: retry,
			}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			typ = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
				retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

func (d *Decoder) readLine() (string, error) {
	var buf []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if len(buf)+len(chunk) > MaxLineSize {
			return "", ErrLineTooLong
		}
		buf = append(buf, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return "", err
		}
		line := strings.TrimSuffix(string(buf), "\n")
		return strings.TrimSuffix(line, "\r"), nil
	}
}
