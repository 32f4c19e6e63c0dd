package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id           TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	sender_email TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL,
	body         TEXT NOT NULL DEFAULT '',
	priority     TEXT NOT NULL DEFAULT 'Normal',
	received_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	unread       INTEGER NOT NULL DEFAULT 1 CHECK(unread IN (0, 1)),
	attachments  INTEGER NOT NULL DEFAULT 0,
	has_reply    INTEGER NOT NULL DEFAULT 0 CHECK(has_reply IN (0, 1)),
	status       TEXT NOT NULL DEFAULT 'inbox'
		CHECK(status IN ('inbox', 'later', 'archived', 'deleted')),
	external_id  TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_items_status_received ON items(status, received_at);
CREATE INDEX IF NOT EXISTS idx_items_received ON items(received_at);

CREATE TABLE IF NOT EXISTS stats (
	id              INTEGER PRIMARY KEY CHECK(id = 1),
	processed_today INTEGER NOT NULL DEFAULT 0,
	for_later       INTEGER NOT NULL DEFAULT 0,
	archived        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS activities (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	subject    TEXT NOT NULL,
	sender     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at);
CREATE INDEX IF NOT EXISTS idx_activities_item_id ON activities(item_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
