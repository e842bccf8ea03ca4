// Package relay runs chat sessions: it resolves the thread, persists the
// user turn, streams the completion from the selected backend to the client,
// and persists the assistant turn.
//
// # Wire contract
//
// Every session writes SSE frames of the form "data: <json>\n\n":
//
//	data: {"threadId":"..."}                       once, before any token frame
//	data: {"choices":[{"delta":{"content":"Hi"}}]}  zero or more, relayed verbatim
//	data: {"error":"...","code":"..."}              on failure only
//	data: [DONE]                                    always last
//
// # States
//
// A session moves through Init, ThreadResolving, Streaming and Finalizing,
// and ends in Closed or Errored. Validation failures end the session in Init
// without side effects. A client disconnect cancels the upstream request
// immediately; no further frames are written and nothing more is persisted.
package relay
