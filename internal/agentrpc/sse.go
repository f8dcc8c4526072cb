package agentrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEWriter writes Server-Sent Events to an http.ResponseWriter.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter wraps w. Streaming needs a flusher, so a ResponseWriter
// without one is rejected.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: response writer does not support flushing")
	}
	return &SSEWriter{w: w, flusher: f}, nil
}

// Init sets the SSE response headers and flushes them to the client.
// Call it once before the first WriteEvent.
func (sw *SSEWriter) Init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	sw.w.WriteHeader(http.StatusOK)
	sw.flusher.Flush()
}

// WriteEvent writes event as a single "data: {json}" frame and flushes it.
func (sw *SSEWriter) WriteEvent(event CacheEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	sw.flusher.Flush()
	return nil
}

// ReadEvents parses SSE frames from body and delivers them on the returned
// channel, which is closed when the body ends or ctx is cancelled. Comment
// lines and unknown fields are ignored; consecutive data lines are joined
// with newlines. A frame that is not valid JSON yields an event with Err set.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan CacheEvent {
	ch := make(chan CacheEvent)
	go func() {
		defer close(ch)
		defer body.Close()

		// Unblock the scanner when ctx ends.
		stop := context.AfterFunc(ctx, func() { body.Close() })
		defer stop()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		var data strings.Builder

		flush := func() {
			if data.Len() == 0 {
				return
			}
			emit(ctx, ch, data.String())
			data.Reset()
		}

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				flush()
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
			if ctx.Err() != nil {
				return
			}
		}
		flush()
	}()
	return ch
}

func emit(ctx context.Context, ch chan<- CacheEvent, raw string) {
	var ev CacheEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		ev = CacheEvent{Err: fmt.Errorf("sse: unmarshal event: %w", err)}
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
