package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

// Writer encodes frames onto a client-facing stream.
type Writer struct {
	w     io.Writer
	flush func() error
}

// NewWriter creates a frame writer. flush is called after every frame so that
// each one reaches the client as soon as it is produced; it may be nil.
func NewWriter(w io.Writer, flush func() error) *Writer {
	return &Writer{w: w, flush: flush}
}

// Data writes a pre-encoded payload as a single "data: <payload>\n\n" frame.
func (w *Writer) Data(payload []byte) error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write SSE frame: %w", err)
	}
	return w.doFlush()
}

// JSON marshals v and writes it as a single frame.
func (w *Writer) JSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE frame: %w", err)
	}
	return w.Data(data)
}

// Done writes the terminal "data: [DONE]\n\n" frame.
func (w *Writer) Done() error {
	if _, err := io.WriteString(w.w, "data: "+DoneSentinel+"\n\n"); err != nil {
		return fmt.Errorf("failed to write SSE done marker: %w", err)
	}
	return w.doFlush()
}

func (w *Writer) doFlush() error {
	if w.flush == nil {
		return nil
	}
	return w.flush()
}
