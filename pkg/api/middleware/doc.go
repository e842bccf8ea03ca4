// Package middleware provides the HTTP middleware chain for the localchat API.
//
// Chain order, outermost first:
//
//	Recovery -> RequestID -> Logging -> CORS -> router
//
// MetricsMiddleware and tracing run inside the router, where the matched
// route template is known.
//
// Every wrapper that replaces the ResponseWriter implements Unwrap, so
// handlers can flush streamed responses through http.ResponseController.
package middleware
