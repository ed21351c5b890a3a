package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
    msg_id        TEXT PRIMARY KEY,
    session_id    TEXT,
    ts            INTEGER NOT NULL,
    input         INTEGER NOT NULL DEFAULT 0,
    output        INTEGER NOT NULL DEFAULT 0,
    reasoning     INTEGER NOT NULL DEFAULT 0,
    cache_read    INTEGER NOT NULL DEFAULT 0,
    cache_write   INTEGER NOT NULL DEFAULT 0,
    model         TEXT,
    provider_id   TEXT,
    model_id      TEXT,
    role          TEXT
);

CREATE TABLE IF NOT EXISTS files (
    path          TEXT PRIMARY KEY,
    mtime_ns      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_role ON messages(role);

-- Deduplication groups: true uniqueness for accounting is this 9-tuple.
CREATE INDEX IF NOT EXISTS idx_messages_dedup ON messages(ts, role, input, output, reasoning, cache_read, cache_write, provider_id, model_id);
`
