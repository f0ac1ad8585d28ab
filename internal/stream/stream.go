// Package stream implements the newline-delimited tagged-record format the
// relay emits and the chat client consumes. Each record is a one-character
// type tag, a colon, and a JSON payload:
//
//	0:"Hel"              text fragment (JSON string)
//	d:{"finishReason":"stop"}   terminal finish record
//	3:"upstream broke"   best-effort error record once headers are committed
//
// The format matches the data-stream protocol of the browser SDK, so the
// fixture path and the real provider path are indistinguishable on the wire.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ProtocolHeader marks the stream protocol version on relay responses.
const (
	ProtocolHeader  = "X-Vercel-AI-Data-Stream"
	ProtocolVersion = "v1"
)

// Record type tags.
const (
	tagText   = "0"
	tagFinish = "d"
	tagError  = "3"
)

// Kind discriminates decoded records.
type Kind int

const (
	KindText Kind = iota
	KindFinish
	KindError
)

// Event is one decoded record.
type Event struct {
	Kind         Kind
	Text         string
	FinishReason string
	// LegacyText is the flat text field some finish records carry. Consumers
	// prefer the accumulated fragments and fall back to this.
	LegacyText string
	// Message is the error payload of an error record.
	Message string
}

type finishPayload struct {
	FinishReason string `json:"finishReason"`
	Text         string `json:"text,omitempty"`
}

// Writer encodes records onto w, flushing after every record so consumers
// can render fragments as they arrive.
type Writer struct {
	w     io.Writer
	flush func()
}

// NewWriter wraps w. flush may be nil when the destination needs no explicit
// flushing (buffers, pipes).
func NewWriter(w io.Writer, flush func()) *Writer {
	return &Writer{w: w, flush: flush}
}

func (w *Writer) write(tag string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.w, "%s:%s\n", tag, data); err != nil {
		return err
	}
	if w.flush != nil {
		w.flush()
	}
	return nil
}

// Text writes one fragment record.
func (w *Writer) Text(fragment string) error {
	return w.write(tagText, fragment)
}

// Finish writes the terminal record.
func (w *Writer) Finish(reason string) error {
	return w.write(tagFinish, finishPayload{FinishReason: reason})
}

// Error writes a best-effort error record for failures that happen after
// streaming has begun.
func (w *Writer) Error(message string) error {
	return w.write(tagError, message)
}

// Reader decodes records from r. Next returns io.EOF once the stream is
// exhausted.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: sc}
}

// Next decodes the next record.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		tag, payload, ok := strings.Cut(line, ":")
		if !ok {
			return Event{}, fmt.Errorf("malformed stream record: %q", line)
		}
		switch tag {
		case tagText:
			var text string
			if err := json.Unmarshal([]byte(payload), &text); err != nil {
				return Event{}, fmt.Errorf("decode text record: %w", err)
			}
			return Event{Kind: KindText, Text: text}, nil
		case tagFinish:
			var fin finishPayload
			if err := json.Unmarshal([]byte(payload), &fin); err != nil {
				return Event{}, fmt.Errorf("decode finish record: %w", err)
			}
			return Event{Kind: KindFinish, FinishReason: fin.FinishReason, LegacyText: fin.Text}, nil
		case tagError:
			var msg string
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				return Event{}, fmt.Errorf("decode error record: %w", err)
			}
			return Event{Kind: KindError, Message: msg}, nil
		default:
			return Event{}, fmt.Errorf("unknown stream record tag %q", tag)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
