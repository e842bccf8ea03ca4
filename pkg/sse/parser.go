package sse

import (
	"bytes"
	"encoding/json"
	"io"
)

// DoneSentinel is the payload that terminates an event stream.
const DoneSentinel = "[DONE]"

// dataPrefix marks the lines that carry a payload.
var dataPrefix = []byte("data:")

// Event is a single decoded "data:" payload.
type Event struct {
	// Data is the JSON payload with the "data:" marker and surrounding
	// whitespace removed. It is owned by the caller.
	Data json.RawMessage
}

// Parser decodes raw stream chunks into events. It is push based: the caller
// feeds chunks in arrival order and receives the events completed by each one.
// The zero value is ready to use. A Parser is not safe for concurrent use.
type Parser struct {
	carry   []byte
	done    bool
	dropped int
}

// Feed consumes the next chunk and returns the events whose lines it completed.
// Once the sentinel has been seen, Feed returns nil for all further input.
func (p *Parser) Feed(chunk []byte) []Event {
	if p.done || len(chunk) == 0 {
		return nil
	}

	buf := append(p.carry, chunk...)
	var events []Event
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		events = p.line(buf[:i], events)
		buf = buf[i+1:]
		if p.done {
			p.carry = nil
			return events
		}
	}

	// Re-buffer the trailing fragment. Copy so the carry never aliases the
	// caller's chunk.
	p.carry = append(p.carry[:0:0], buf...)
	return events
}

// Flush treats any buffered partial line as complete. It is called once the
// underlying stream has ended without a trailing newline.
func (p *Parser) Flush() []Event {
	if p.done || len(p.carry) == 0 {
		return nil
	}
	events := p.line(p.carry, nil)
	p.carry = nil
	return events
}

// Done reports whether the terminal sentinel has been decoded.
func (p *Parser) Done() bool {
	return p.done
}

// Dropped returns the number of data lines discarded because their payload
// was not valid JSON.
func (p *Parser) Dropped() int {
	return p.dropped
}

// Reset clears all state so the parser can decode a new stream.
func (p *Parser) Reset() {
	p.carry = nil
	p.done = false
	p.dropped = 0
}

// line decodes one complete line and appends the resulting event, if any.
func (p *Parser) line(raw []byte, events []Event) []Event {
	trimmed := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(trimmed, dataPrefix) {
		// Comments, event/id fields and blank separators.
		return events
	}

	payload := bytes.TrimSpace(trimmed[len(dataPrefix):])
	if string(payload) == DoneSentinel {
		p.done = true
		return events
	}
	if !json.Valid(payload) {
		p.dropped++
		return events
	}

	data := make([]byte, len(payload))
	copy(data, payload)
	return append(events, Event{Data: data})
}

// Decoder reads events from an io.Reader. It is the pull-based counterpart of
// Parser, used on HTTP response bodies.
type Decoder struct {
	r       io.Reader
	parser  Parser
	buf     []byte
	pending []Event
	eof     bool
}

// defaultReadSize is the size of each read from the underlying reader.
const defaultReadSize = 4096

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, defaultReadSize),
	}
}

// Next returns the next event. It returns io.EOF after the sentinel or when
// the reader is exhausted. Any other error comes from the underlying reader.
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.parser.Done() || d.eof {
			return Event{}, io.EOF
		}

		n, err := d.r.Read(d.buf)
		if n > 0 {
			d.pending = append(d.pending, d.parser.Feed(d.buf[:n])...)
		}
		if err == io.EOF {
			d.eof = true
			d.pending = append(d.pending, d.parser.Flush()...)
			continue
		}
		if err != nil {
			return Event{}, err
		}
	}
}

// Dropped returns the number of malformed payloads skipped so far.
func (d *Decoder) Dropped() int {
	return d.parser.Dropped()
}
