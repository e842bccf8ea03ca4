// Package health aggregates component checks for the readiness probe.
//
// Checks are either critical or optional. A failing critical check, such as
// the thread store, makes the relay not ready. A failing optional check, such
// as an unreachable model backend, only degrades the report: the relay still
// accepts requests and surfaces the backend failure in the stream.
//
//	checker := health.New(2 * time.Second)
//	checker.Register("store", st.Ping)
//	checker.RegisterOptional("backend.vllm", func(ctx context.Context) error {
//	    return client.Probe(ctx, vllm.ModelsURL())
//	})
//
//	report := checker.Check(ctx)
//	if !report.Ready() {
//	    // 503
//	}
//
// All checks run concurrently, each bounded by the checker timeout.
package health
