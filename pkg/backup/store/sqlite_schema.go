package store

// SchemaVersion is the current catalog schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the backup catalog schema.
const Schema = `
-- One row per backup copy
CREATE TABLE IF NOT EXISTS backups (
    partition_id INTEGER NOT NULL,
    node_id INTEGER NOT NULL,
    checkpoint_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    failure_reason TEXT,

    -- JSON encoded descriptor, NULL when absent
    descriptor TEXT,

    -- Unix nanoseconds, NULL when unknown
    created_at INTEGER,
    last_modified INTEGER,

    PRIMARY KEY (partition_id, node_id, checkpoint_id)
);

-- Range marker log per partition
CREATE TABLE IF NOT EXISTS range_markers (
    partition_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    checkpoint_id INTEGER NOT NULL,
    PRIMARY KEY (partition_id, kind, checkpoint_id)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_backups_checkpoint ON backups(partition_id, checkpoint_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const upsertBackup = `
INSERT INTO backups (
    partition_id, node_id, checkpoint_id, status, failure_reason, descriptor, created_at, last_modified
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(partition_id, node_id, checkpoint_id) DO UPDATE SET
    status = excluded.status,
    failure_reason = excluded.failure_reason,
    descriptor = excluded.descriptor,
    created_at = excluded.created_at,
    last_modified = excluded.last_modified;
`

const selectBackups = `
SELECT partition_id, node_id, checkpoint_id, status, failure_reason, descriptor, created_at, last_modified
FROM backups`

const deleteBackup = `
DELETE FROM backups WHERE partition_id = ? AND node_id = ? AND checkpoint_id = ?;
`

const selectMarkers = `
SELECT kind, checkpoint_id FROM range_markers WHERE partition_id = ? ORDER BY checkpoint_id;
`

const insertMarker = `
INSERT INTO range_markers (partition_id, kind, checkpoint_id)
VALUES (?, ?, ?)
ON CONFLICT(partition_id, kind, checkpoint_id) DO NOTHING;
`

const deleteMarker = `
DELETE FROM range_markers WHERE partition_id = ? AND kind = ? AND checkpoint_id = ?;
`
