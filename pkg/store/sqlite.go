package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver, requires cgo
	_ "modernc.org/sqlite"          // "sqlite" driver, pure Go
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" opens a private in-memory
	// database.
	Path string

	// Driver is "sqlite" (default) or "sqlite3".
	Driver string

	// WALMode enables write-ahead logging.
	WALMode bool

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	config SQLiteConfig
	opts   options
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig, opts ...Option) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCGO {
		return nil, fmt.Errorf("unknown sqlite driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "store.sqlite")

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, newError("sqlite", "create_dir", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, newError("sqlite", "open", err)
	}

	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		opts:   defaultOptions(opts),
		logger: logger,
	}

	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	if s.config.WALMode && s.config.Path != ":memory:" {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return newError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return newError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return newError("sqlite", "create_schema", err)
	}

	if _, err := s.db.ExecContext(ctx, insertSchemaVersion, SchemaVersion, time.Now().UnixNano()); err != nil {
		return newError("sqlite", "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, getSchemaVersion).Scan(&version); err != nil {
		return newError("sqlite", "get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return newError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}
	return nil
}

func (s *SQLiteStore) CreateThread(ctx context.Context, title string) (Thread, error) {
	t := Thread{ID: s.opts.newID(), Title: title, CreatedAt: s.opts.now()}
	if _, err := s.db.ExecContext(ctx, insertThread, t.ID, t.Title, t.CreatedAt.UnixNano()); err != nil {
		return Thread{}, newError("sqlite", "create_thread", err)
	}
	return t, nil
}

func (s *SQLiteStore) GetThread(ctx context.Context, id string) (Thread, error) {
	var (
		t       Thread
		created int64
	)
	err := s.db.QueryRowContext(ctx, getThread, id).Scan(&t.ID, &t.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, threadNotFound(id)
	}
	if err != nil {
		return Thread{}, newError("sqlite", "get_thread", err)
	}
	t.CreatedAt = time.Unix(0, created)
	return t, nil
}

func (s *SQLiteStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, listThreads)
	if err != nil {
		return nil, newError("sqlite", "list_threads", err)
	}
	defer rows.Close()

	threads := []Thread{}
	for rows.Next() {
		var (
			t       Thread
			created int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &created); err != nil {
			return nil, newError("sqlite", "list_threads", err)
		}
		t.CreatedAt = time.Unix(0, created)
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("sqlite", "list_threads", err)
	}
	return threads, nil
}

func (s *SQLiteStore) RenameThread(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, renameThread, title, id)
	if err != nil {
		return newError("sqlite", "rename_thread", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return threadNotFound(id)
	}
	return nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, id string) error {
	return s.inTx(ctx, "delete_thread", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteThreadM, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, deleteThread, id)
		return err
	})
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg NewMessage) (Message, error) {
	m := Message{
		ID:        s.opts.newID(),
		ThreadID:  msg.ThreadID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: s.opts.now(),
		TokensIn:  msg.TokensIn,
		TokensOut: msg.TokensOut,
		LatencyMs: msg.LatencyMs,
	}

	var missing bool
	err := s.inTx(ctx, "append_message", func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, threadExists, m.ThreadID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insertMessage, messageArgs(m)...)
		return err
	})
	if err != nil {
		return Message{}, err
	}
	if missing {
		return Message{}, threadNotFound(m.ThreadID)
	}
	return m, nil
}

func (s *SQLiteStore) Messages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, listMessages, threadID)
	if err != nil {
		return nil, newError("sqlite", "list_messages", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, newError("sqlite", "list_messages", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("sqlite", "list_messages", err)
	}
	return messages, nil
}

func (s *SQLiteStore) Export(ctx context.Context) (*Snapshot, error) {
	threads, err := s.ListThreads(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Threads: make([]ThreadSnapshot, 0, len(threads))}
	for _, t := range threads {
		messages, err := s.Messages(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		snap.Threads = append(snap.Threads, ThreadSnapshot{
			ID:        t.ID,
			Title:     t.Title,
			CreatedAt: t.CreatedAt,
			Messages:  messages,
		})
	}
	return snap, nil
}

func (s *SQLiteStore) Import(ctx context.Context, snap *Snapshot) (ImportResult, error) {
	if err := snap.Validate(); err != nil {
		return ImportResult{}, newError("sqlite", "import", err)
	}

	var result ImportResult
	err := s.inTx(ctx, "import", func(tx *sql.Tx) error {
		for _, t := range snap.Threads {
			if _, err := tx.ExecContext(ctx, upsertThread, t.ID, t.Title, t.CreatedAt.UnixNano()); err != nil {
				return fmt.Errorf("thread %s: %w", t.ID, err)
			}
			result.Threads++

			for _, m := range t.Messages {
				res, err := tx.ExecContext(ctx, importMessage, messageArgs(m)...)
				if err != nil {
					return fmt.Errorf("message %s: %w", m.ID, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					result.MessagesInserted++
				} else {
					result.MessagesSkipped++
				}
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.logger.InfoContext(ctx, "snapshot imported",
		"threads", result.Threads,
		"messages_inserted", result.MessagesInserted,
		"messages_skipped", result.MessagesSkipped,
	)
	return result, nil
}

func (s *SQLiteStore) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, listSettings)
	if err != nil {
		return nil, newError("sqlite", "get_settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, newError("sqlite", "get_settings", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, newError("sqlite", "get_settings", err)
	}
	return out, nil
}

func (s *SQLiteStore) PutSettings(ctx context.Context, values map[string]string) error {
	return s.inTx(ctx, "put_settings", func(tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, upsertSetting, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return newError("sqlite", "ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newError("sqlite", op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return newError("sqlite", op, err)
	}
	if err := tx.Commit(); err != nil {
		return newError("sqlite", op, err)
	}
	return nil
}

func messageArgs(m Message) []any {
	return []any{
		m.ID,
		m.ThreadID,
		string(m.Role),
		m.Content,
		m.CreatedAt.UnixNano(),
		nullInt(m.TokensIn),
		nullInt(m.TokensOut),
		nullInt64(m.LatencyMs),
	}
}

func scanMessage(rows *sql.Rows) (Message, error) {
	var (
		m                            Message
		role                         string
		created                      int64
		tokensIn, tokensOut, latency sql.NullInt64
	)
	if err := rows.Scan(&m.ID, &m.ThreadID, &role, &m.Content, &created, &tokensIn, &tokensOut, &latency); err != nil {
		return Message{}, err
	}
	m.Role = Role(role)
	m.CreatedAt = time.Unix(0, created)
	if tokensIn.Valid {
		v := int(tokensIn.Int64)
		m.TokensIn = &v
	}
	if tokensOut.Valid {
		v := int(tokensOut.Int64)
		m.TokensOut = &v
	}
	if latency.Valid {
		v := latency.Int64
		m.LatencyMs = &v
	}
	return m, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
