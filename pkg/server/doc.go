// Package server runs the localchat HTTP API.
//
// The server owns the router, the middleware chain and the process
// lifecycle around them: scheduled backups, configuration hot reload and
// graceful shutdown on SIGINT or SIGTERM.
//
// # Basic Usage
//
//	srv := server.New(cfg, server.Deps{
//	    Store:   st,
//	    Relay:   controller,
//	    Metrics: collector,
//	}, version)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Reload
//
// When Deps.ConfigPath is set the file is watched. A valid new
// configuration replaces the relay's backend selector and generation
// defaults; sessions already streaming keep the settings they started with.
// Listener settings take effect on restart only.
//
// # Streaming and timeouts
//
// Chat responses are unbounded streams, so server.write_timeout defaults to
// zero. A client that disconnects cancels its session's upstream request.
package server
