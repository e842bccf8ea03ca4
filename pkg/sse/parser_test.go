package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
	": keep-alive comment\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
	"data: [DONE]\n\n"

func feedAll(p *Parser, chunks ...string) []Event {
	var events []Event
	for _, c := range chunks {
		events = append(events, p.Feed([]byte(c))...)
	}
	return append(events, p.Flush()...)
}

func payloads(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev.Data)
	}
	return out
}

func TestParserSingleChunk(t *testing.T) {
	var p Parser
	events := feedAll(&p, sampleStream)

	assert.Equal(t, []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
	}, payloads(events))
	assert.True(t, p.Done())
	assert.Zero(t, p.Dropped())
}

func TestParserChunkBoundaryInvariance(t *testing.T) {
	var whole Parser
	want := payloads(feedAll(&whole, sampleStream))

	// Every two-way split.
	for i := 0; i <= len(sampleStream); i++ {
		var p Parser
		got := payloads(feedAll(&p, sampleStream[:i], sampleStream[i:]))
		require.Equal(t, want, got, "split at %d", i)
		require.True(t, p.Done(), "split at %d", i)
	}

	// One byte per chunk.
	var p Parser
	chunks := strings.Split(sampleStream, "")
	assert.Equal(t, want, payloads(feedAll(&p, chunks...)))
}

func TestParserSingleLineAcrossManyChunks(t *testing.T) {
	line := `data: {"choices":[{"delta":{"content":"split"}}]}` + "\n"
	for size := 1; size <= len(line); size++ {
		var p Parser
		var chunks []string
		for i := 0; i < len(line); i += size {
			end := i + size
			if end > len(line) {
				end = len(line)
			}
			chunks = append(chunks, line[i:end])
		}
		events := feedAll(&p, chunks...)
		require.Len(t, events, 1, "chunk size %d", size)
	}
}

func TestParserLines(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        []string
		wantDone    bool
		wantDropped int
	}{
		{
			name:  "ignores non-data lines",
			input: "event: message\nid: 7\nretry: 100\n\n: comment\n",
			want:  nil,
		},
		{
			name:        "drops malformed json",
			input:       "data: {not json}\ndata: {\"ok\":true}\n",
			want:        []string{`{"ok":true}`},
			wantDropped: 1,
		},
		{
			name:  "accepts missing space after marker",
			input: "data:{\"a\":1}\n",
			want:  []string{`{"a":1}`},
		},
		{
			name:     "handles crlf line endings",
			input:    "data: {\"a\":1}\r\n\r\ndata: [DONE]\r\n",
			want:     []string{`{"a":1}`},
			wantDone: true,
		},
		{
			name:     "ignores everything after sentinel",
			input:    "data: [DONE]\ndata: {\"late\":true}\n",
			want:     nil,
			wantDone: true,
		},
		{
			name:  "flushes trailing line without newline",
			input: "data: {\"tail\":1}",
			want:  []string{`{"tail":1}`},
		},
		{
			name:        "empty payload is dropped",
			input:       "data:\n",
			want:        nil,
			wantDropped: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parser
			got := feedAll(&p, tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, payloads(got))
			}
			assert.Equal(t, tt.wantDone, p.Done())
			assert.Equal(t, tt.wantDropped, p.Dropped())
		})
	}
}

func TestParserEventDataIsIndependentOfInput(t *testing.T) {
	var p Parser
	chunk := []byte("data: {\"a\":1}\n")
	events := p.Feed(chunk)
	require.Len(t, events, 1)

	copy(chunk, bytes.Repeat([]byte("x"), len(chunk)))
	assert.Equal(t, `{"a":1}`, string(events[0].Data))
}

func TestParserReset(t *testing.T) {
	var p Parser
	feedAll(&p, "data: {bad}\ndata: [DONE]\n")
	require.True(t, p.Done())

	p.Reset()
	assert.False(t, p.Done())
	assert.Zero(t, p.Dropped())
	assert.Len(t, p.Feed([]byte("data: {}\n")), 1)
}

func TestDecoder(t *testing.T) {
	readers := map[string]io.Reader{
		"whole":    strings.NewReader(sampleStream),
		"one byte": iotest.OneByteReader(strings.NewReader(sampleStream)),
		"half":     iotest.HalfReader(strings.NewReader(sampleStream)),
	}

	for name, r := range readers {
		t.Run(name, func(t *testing.T) {
			dec := NewDecoder(r)
			var got []string
			for {
				ev, err := dec.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, string(ev.Data))
			}
			assert.Len(t, got, 2)

			_, err := dec.Next()
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestDecoderEndsWithoutSentinel(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: {\"a\":1}\n\ndata: {\"b\":2}"))

	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(ev.Data))

	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(ev.Data))

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderPropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"a\":1}\n"),
		iotest.ErrReader(boom),
	)
	dec := NewDecoder(r)

	_, err := dec.Next()
	require.NoError(t, err)

	_, err = dec.Next()
	assert.ErrorIs(t, err, boom)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	flushes := 0
	w := NewWriter(&buf, func() error {
		flushes++
		return nil
	})

	require.NoError(t, w.JSON(map[string]string{"threadId": "t1"}))
	require.NoError(t, w.Data([]byte(`{"choices":[]}`)))
	require.NoError(t, w.Done())

	assert.Equal(t, "data: {\"threadId\":\"t1\"}\n\ndata: {\"choices\":[]}\n\ndata: [DONE]\n\n", buf.String())
	assert.Equal(t, 3, flushes)
}
