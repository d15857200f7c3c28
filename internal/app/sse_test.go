package app

import (
	"strings"
	"testing"
)

func TestEventScannerSingleBlock(t *testing.T) {
	s := NewEventScanner()
	events := s.Feed([]byte("event: thinking\ndata: {\"agent\":\"Researcher\"}\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "thinking" {
		t.Fatalf("name: got %q", events[0].Name)
	}
	if string(events[0].Data) != `{"agent":"Researcher"}` {
		t.Fatalf("data: got %q", string(events[0].Data))
	}
}

func TestEventScannerChunkBoundaryRobustness(t *testing.T) {
	block := "event: tool_call\ndata: {\"agent\":\"Coder\",\"tool\":\"read_file\",\"args\":\"{}\"}\n\n"

	// Splitting the block at every byte offset, including mid-line, must
	// yield exactly the same event as feeding it whole.
	for cut := 1; cut < len(block); cut++ {
		s := NewEventScanner()
		events := s.Feed([]byte(block[:cut]))
		events = append(events, s.Feed([]byte(block[cut:]))...)
		if len(events) != 1 {
			t.Fatalf("cut %d: expected 1 event, got %d", cut, len(events))
		}
		if events[0].Name != "tool_call" {
			t.Fatalf("cut %d: name %q", cut, events[0].Name)
		}
	}
}

func TestEventScannerMultipleBlocksInOneChunk(t *testing.T) {
	chunk := "event: thinking\ndata: {\"agent\":\"A\"}\n\n" +
		"event: finish\ndata: {\"status\":\"CONTINUE\"}\n\n"
	s := NewEventScanner()
	events := s.Feed([]byte(chunk))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Name != "thinking" || events[1].Name != "finish" {
		t.Fatalf("wrong events: %q %q", events[0].Name, events[1].Name)
	}
}

func TestEventScannerSkipsMalformedBlocks(t *testing.T) {
	chunk := "garbage line\n\n" + // no event/data lines
		"event: thinking\n\n" + // missing data line
		"data: {\"agent\":\"A\"}\n\n" + // missing event line
		"event: thinking\ndata: {not json}\n\n" + // broken json
		"event: thinking\ndata: {\"agent\":\"B\"}\n\n" // valid
	s := NewEventScanner()
	events := s.Feed([]byte(chunk))
	if len(events) != 1 {
		t.Fatalf("expected malformed blocks skipped, got %d events", len(events))
	}
	if string(events[0].Data) != `{"agent":"B"}` {
		t.Fatalf("wrong surviving event: %q", string(events[0].Data))
	}
}

func TestEventScannerHoldsTrailingPartialBlock(t *testing.T) {
	s := NewEventScanner()
	if events := s.Feed([]byte("event: finish\ndata: {\"status\":\"DONE\"}")); len(events) != 0 {
		t.Fatalf("incomplete block must not emit, got %d events", len(events))
	}
	events := s.Feed([]byte("\n\n"))
	if len(events) != 1 || events[0].Name != "finish" {
		t.Fatalf("expected buffered block completed, got %v", events)
	}
}

func TestEventScannerToleratesCRLF(t *testing.T) {
	s := NewEventScanner()
	events := s.Feed([]byte("event: finish\r\ndata: {\"status\":\"DONE\"}\r\n\n"))
	if len(events) != 1 || events[0].Name != "finish" {
		t.Fatalf("expected CRLF block parsed, got %v", events)
	}
}

func TestReadStream(t *testing.T) {
	input := "event: thinking\ndata: {\"agent\":\"A\"}\n\n" +
		"event: finish\ndata: {\"status\":\"DONE\"}\n\n"
	var names []string
	err := ReadStream(strings.NewReader(input), func(ev StreamEvent) {
		names = append(names, ev.Name)
	})
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(names) != 2 || names[0] != "thinking" || names[1] != "finish" {
		t.Fatalf("wrong events: %v", names)
	}
}
