package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Timestamps are stored as Unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_threads_created_at ON threads(created_at);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    tokens_in INTEGER,
    tokens_out INTEGER,
    latency_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const (
	insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`
	getSchemaVersion    = `SELECT MAX(version) FROM schema_version`

	insertThread = `INSERT INTO threads (id, title, created_at) VALUES (?, ?, ?)`
	upsertThread = `INSERT INTO threads (id, title, created_at) VALUES (?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET title = excluded.title`
	getThread     = `SELECT id, title, created_at FROM threads WHERE id = ?`
	listThreads   = `SELECT id, title, created_at FROM threads ORDER BY created_at DESC, rowid DESC`
	renameThread  = `UPDATE threads SET title = ? WHERE id = ?`
	deleteThread  = `DELETE FROM threads WHERE id = ?`
	threadExists  = `SELECT 1 FROM threads WHERE id = ?`
	deleteThreadM = `DELETE FROM messages WHERE thread_id = ?`

	insertMessage = `INSERT INTO messages (id, thread_id, role, content, created_at, tokens_in, tokens_out, latency_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	importMessage = insertMessage + ` ON CONFLICT (id) DO NOTHING`
	listMessages  = `SELECT id, thread_id, role, content, created_at, tokens_in, tokens_out, latency_ms
        FROM messages WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC`

	listSettings  = `SELECT key, value FROM settings`
	upsertSetting = `INSERT INTO settings (key, value) VALUES (?, ?)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value`
)
