// Package handlers implements the localchat HTTP API.
//
//	POST   /api/chat                 stream a chat turn as SSE
//	GET    /api/threads              list threads, newest first
//	POST   /api/threads              create an empty thread
//	GET    /api/threads/{id}         thread with its messages
//	PATCH  /api/threads/{id}         rename
//	DELETE /api/threads/{id}         delete
//	GET    /api/storage/export       download all threads
//	POST   /api/storage/import       merge a download back in
//	GET    /api/settings             key/value settings
//	POST   /api/settings             upsert settings
//	GET    /health                   liveness
//	GET    /ready                    readiness checks (store, backends)
package handlers
