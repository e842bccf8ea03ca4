// Package store persists chat threads, their messages, and user settings.
//
// # Backends
//
//   - SQLite: durable storage in a single database file. Two drivers are
//     available: "sqlite" (modernc.org/sqlite, pure Go, the default) and
//     "sqlite3" (github.com/mattn/go-sqlite3, requires cgo).
//   - Memory: process-local storage for tests and throwaway sessions.
//
// Both backends satisfy the Store interface and share one conformance test
// suite.
//
// # Basic Usage
//
//	s, err := store.Open(ctx, store.Config{
//	    Backend: store.BackendSQLite,
//	    SQLite:  store.SQLiteConfig{Path: "data/localchat.db", WALMode: true},
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	thread, err := s.CreateThread(ctx, "Planning")
//	msg, err := s.AppendMessage(ctx, store.NewMessage{
//	    ThreadID: thread.ID,
//	    Role:     store.RoleUser,
//	    Content:  "hello",
//	})
//
// # Ordering
//
// Threads are listed newest first. Messages of a thread are returned in
// creation order; messages created within the same clock tick keep their
// insertion order.
//
// # Snapshots
//
// Export produces a Snapshot of every thread with its messages. Import
// upserts thread titles and inserts messages by id, skipping ids that already
// exist, so importing the same snapshot twice is a no-op.
package store
