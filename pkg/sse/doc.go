// Package sse implements the Server-Sent Events framing used between the relay,
// its upstream completion servers, and its clients.
//
// The decoding side is a pure byte-stream-to-event transform. Upstream bodies
// arrive in chunks that may split a logical line anywhere; Parser keeps the
// trailing partial line between calls so that a line is decoded exactly once
// no matter how it was chunked. Lines without a "data:" marker are ignored,
// the "[DONE]" sentinel ends the sequence, and payloads that are not valid
// JSON are dropped and counted rather than reported.
//
// Basic usage:
//
//	dec := sse.NewDecoder(resp.Body)
//	for {
//	    ev, err := dec.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    handle(ev.Data)
//	}
//
// The encoding side, Writer, emits "data: <payload>\n\n" frames and the
// terminal "data: [DONE]\n\n" line, flushing after every frame.
package sse
