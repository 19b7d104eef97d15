package assistant

import (
	"fmt"
	"time"
)

// Frame is one discriminated event of the chat stream: an incremental
// sanitized text fragment, a visual side-channel payload, a terminal error,
// or the end-of-stream sentinel.
type Frame struct {
	Text      string         `json:"text,omitempty"`
	Type      string         `json:"type,omitempty"` // "visual" on side-channel frames
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Done      bool           `json:"done,omitempty"`
	SessionID string         `json:"sessionId,omitempty"` // set on the done frame
}

func textFrame(s string) Frame             { return Frame{Text: s} }
func visualFrame(data map[string]any) Frame { return Frame{Type: "visual", Data: data} }
func errorFrame(msg string) Frame          { return Frame{Error: msg} }
func doneFrame(sessionID string) Frame     { return Frame{Done: true, SessionID: sessionID} }

// EmitFunc delivers one frame to the caller. Returning an error stops the
// stream (typically a disconnected client).
type EmitFunc func(Frame) error

// QuotaError reports a rate-limit rejection raised before any frame was
// emitted, carrying the machine-readable retry delay.
type QuotaError struct {
	Limiter    string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("rate limit %q exceeded, retry in %s", e.Limiter, e.RetryAfter)
}
