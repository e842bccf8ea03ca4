package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultThreadTitle is the title given to threads created without one.
const DefaultThreadTitle = "New Chat"

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Thread is a named conversation.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one turn of a thread. The statistics fields are only set on
// assistant messages.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	TokensIn  *int      `json:"tokensIn,omitempty"`
	TokensOut *int      `json:"tokensOut,omitempty"`
	LatencyMs *int64    `json:"latencyMs,omitempty"`
}

// NewMessage holds the fields supplied when appending a message.
type NewMessage struct {
	ThreadID  string
	Role      Role
	Content   string
	TokensIn  *int
	TokensOut *int
	LatencyMs *int64
}

// ImportResult summarizes an Import call.
type ImportResult struct {
	Threads          int `json:"threads"`
	MessagesInserted int `json:"messagesInserted"`
	MessagesSkipped  int `json:"messagesSkipped"`
}

// Store is the persistence interface used by the relay and the HTTP API.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateThread creates a thread with the given title.
	CreateThread(ctx context.Context, title string) (Thread, error)

	// GetThread returns the thread or an error wrapping ErrThreadNotFound.
	GetThread(ctx context.Context, id string) (Thread, error)

	// ListThreads returns all threads, newest first.
	ListThreads(ctx context.Context) ([]Thread, error)

	// RenameThread changes a thread's title.
	RenameThread(ctx context.Context, id, title string) error

	// DeleteThread removes a thread and its messages. Deleting an absent
	// thread is not an error.
	DeleteThread(ctx context.Context, id string) error

	// AppendMessage adds a message to an existing thread.
	AppendMessage(ctx context.Context, msg NewMessage) (Message, error)

	// Messages returns the messages of a thread in creation order.
	Messages(ctx context.Context, threadID string) ([]Message, error)

	// Export returns a snapshot of all threads and messages.
	Export(ctx context.Context) (*Snapshot, error)

	// Import merges a snapshot into the store.
	Import(ctx context.Context, snap *Snapshot) (ImportResult, error)

	// Settings returns all stored settings.
	Settings(ctx context.Context) (map[string]string, error)

	// PutSettings upserts the given settings.
	PutSettings(ctx context.Context, values map[string]string) error

	// Ping checks that the store is usable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Backend names accepted in Config.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is "sqlite" or "memory".
	Backend string

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(opts...), nil
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, cfg.SQLite, opts...)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Option customizes a store.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func defaultOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator sets the generator used for thread and message ids.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}
