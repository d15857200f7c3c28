package app

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// StreamEvent is one parsed server-sent event: an event name plus its JSON
// payload.
type StreamEvent struct {
	Name string
	Data json.RawMessage
}

// EventScanner incrementally splits an SSE byte stream into events. Chunks
// may cut an event anywhere, including mid-line; the trailing incomplete
// block is buffered until the next Feed. Blocks missing an event or data
// line, or carrying unparseable JSON, are dropped silently — a malformed
// block never aborts the stream.
type EventScanner struct {
	buf []byte
}

func NewEventScanner() *EventScanner {
	return &EventScanner{}
}

// Feed appends a chunk to the buffer and returns every event completed by it.
func (s *EventScanner) Feed(chunk []byte) []StreamEvent {
	s.buf = append(s.buf, chunk...)
	var events []StreamEvent
	for {
		i := bytes.Index(s.buf, []byte("\n\n"))
		if i < 0 {
			return events
		}
		block := string(s.buf[:i])
		s.buf = s.buf[i+2:]
		if ev, ok := parseEventBlock(block); ok {
			events = append(events, ev)
		}
	}
}

func parseEventBlock(block string) (StreamEvent, bool) {
	if strings.TrimSpace(block) == "" {
		return StreamEvent{}, false
	}
	var name, data string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case name == "" && strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case data == "" && strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if name == "" || data == "" {
		return StreamEvent{}, false
	}
	if !json.Valid([]byte(data)) {
		return StreamEvent{}, false
	}
	return StreamEvent{Name: name, Data: json.RawMessage(data)}, true
}

// ReadStream drives a scanner over a reader until EOF, invoking handle for
// each parsed event. Transport errors end the stream; they are returned so
// the caller can log them.
func ReadStream(r io.Reader, handle func(StreamEvent)) error {
	scanner := NewEventScanner()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range scanner.Feed(buf[:n]) {
				handle(ev)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
