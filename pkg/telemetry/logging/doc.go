// Package logging configures structured logging on top of log/slog.
//
// New builds a *slog.Logger from Config. The returned logger:
//   - writes JSON or text records at the configured level
//   - adds request_id, thread_id, trace_id and span_id from the context of
//     every *Context call
//   - redacts secret-bearing attributes (api keys, authorization headers,
//     tokens, passwords) when RedactSecrets is set
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactSecrets: true})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "chat session started", "model", "llama3:8b")
//	// {"level":"INFO","msg":"chat session started","model":"llama3:8b","request_id":"req-123"}
package logging
