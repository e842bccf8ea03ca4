package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"mercator-hq/localchat/pkg/sse"
	"mercator-hq/localchat/pkg/upstream"
)

// Consumer reads an upstream completion stream and reports what it sees.
// It is shared by the server relay and the terminal client. All callbacks
// are optional and run on the calling goroutine in arrival order.
type Consumer struct {
	// OnEvent receives every decoded data payload, unmodified.
	OnEvent func(data json.RawMessage) error

	// OnDelta receives each non-empty content delta.
	OnDelta func(delta string) error

	// OnTerminal runs once when consumption ends, with the final error.
	OnTerminal func(result Consumed, err error)
}

// Consumed summarizes a consumed stream.
type Consumed struct {
	// Text is the concatenation of all deltas in arrival order.
	Text string

	// Events is the number of decoded payloads.
	Events int

	// Deltas is the number of non-empty deltas.
	Deltas int

	// Dropped is the number of malformed lines skipped.
	Dropped int

	// Usage is the last usage report seen, if any.
	Usage *upstream.Usage
}

// Consume reads r until the terminal sentinel or end of stream. Read failures
// are returned as *upstream.StreamError unless ctx was cancelled, in which
// case ctx.Err() is returned. Callback errors are returned unchanged.
func (c Consumer) Consume(ctx context.Context, r io.Reader) (result Consumed, err error) {
	var text strings.Builder
	dec := sse.NewDecoder(r)

	defer func() {
		result.Text = text.String()
		result.Dropped = dec.Dropped()
		if c.OnTerminal != nil {
			c.OnTerminal(result, err)
		}
	}()

	for {
		ev, readErr := dec.Next()
		if errors.Is(readErr, io.EOF) {
			return result, nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			return result, &upstream.StreamError{Message: "Upstream stream interrupted", Cause: readErr}
		}
		result.Events++

		if c.OnEvent != nil {
			if err := c.OnEvent(ev.Data); err != nil {
				return result, err
			}
		}

		var chunk upstream.Chunk
		if json.Unmarshal(ev.Data, &chunk) != nil {
			continue
		}
		if chunk.Usage != nil {
			result.Usage = chunk.Usage
		}
		delta := chunk.Delta()
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		result.Deltas++
		if c.OnDelta != nil {
			if err := c.OnDelta(delta); err != nil {
				return result, err
			}
		}
	}
}
