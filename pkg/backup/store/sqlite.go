package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"mercator-hq/backstop/pkg/backup"
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite catalog store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is the database/sql driver: "sqlite" (modernc.org/sqlite, pure Go)
	// or "sqlite3" (github.com/mattn/go-sqlite3, requires cgo).
	// Default: "sqlite"
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/backups.db",
		Driver:       DriverModernc,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements backup.Store on a SQLite catalog database.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the catalog database, creating the schema if needed.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, backup.NewStoreError("sqlite", "open", errors.New("db path cannot be empty"))
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "backup.store.sqlite")

	dsn, err := sqliteDSN(config)
	if err != nil {
		return nil, backup.NewStoreError("sqlite", "open", err)
	}

	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, backup.NewStoreError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// sqliteDSN builds a DSN that applies the pragmas on every pooled connection.
// The two drivers spell connection pragmas differently.
func sqliteDSN(config *SQLiteConfig) (string, error) {
	busyTimeoutMs := config.BusyTimeout.Milliseconds()

	switch config.Driver {
	case DriverMattn:
		params := []string{fmt.Sprintf("_busy_timeout=%d", busyTimeoutMs), "_synchronous=NORMAL"}
		if config.WALMode {
			params = append(params, "_journal_mode=WAL")
		}
		return config.Path + "?" + strings.Join(params, "&"), nil
	case DriverModernc:
		params := []string{fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMs), "_pragma=synchronous(NORMAL)"}
		if config.WALMode {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
		return config.Path + "?" + strings.Join(params, "&"), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q (expected %q or %q)", config.Driver, DriverModernc, DriverMattn)
	}
}

// initialize creates the schema and verifies its version.
func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return backup.NewStoreError("sqlite", "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return backup.NewStoreError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return backup.NewStoreError("sqlite", "get_schema_version", err)
	}

	if version != SchemaVersion {
		return backup.NewStoreError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// List returns the statuses matched by the wildcard, sorted by identifier.
func (s *SQLiteStore) List(ctx context.Context, wildcard backup.Wildcard) ([]backup.Status, error) {
	whereClause, args := buildWhereClause(wildcard)

	query := selectBackups
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	query += " ORDER BY partition_id, checkpoint_id, node_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, backup.NewStoreError("sqlite", "list", err)
	}
	defer rows.Close()

	statuses := []backup.Status{}
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, backup.NewStoreError("sqlite", "scan", err)
		}
		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, backup.NewStoreError("sqlite", "list", err)
	}

	return statuses, nil
}

// Save creates or replaces a status.
func (s *SQLiteStore) Save(ctx context.Context, status backup.Status) error {
	if err := status.Validate(); err != nil {
		return backup.NewStoreError("sqlite", "save", err)
	}

	var descriptor any
	if status.Descriptor != nil {
		data, err := json.Marshal(status.Descriptor)
		if err != nil {
			return backup.NewStoreError("sqlite", "save", err)
		}
		descriptor = string(data)
	}

	var failureReason any
	if status.FailureReason != "" {
		failureReason = status.FailureReason
	}

	_, err := s.db.ExecContext(ctx, upsertBackup,
		status.ID.PartitionID, status.ID.NodeID, status.ID.CheckpointID,
		status.Code.String(), failureReason, descriptor,
		nullableTime(status.Created), nullableTime(status.LastModified),
	)
	if err != nil {
		return backup.NewStoreError("sqlite", "save", err)
	}

	return nil
}

// Delete removes a backup if it exists.
func (s *SQLiteStore) Delete(ctx context.Context, id backup.Identifier) error {
	if _, err := s.db.ExecContext(ctx, deleteBackup, id.PartitionID, id.NodeID, id.CheckpointID); err != nil {
		return backup.NewStoreError("sqlite", "delete", err)
	}
	return nil
}

// RangeMarkers returns the markers of a partition sorted by checkpoint and kind.
func (s *SQLiteStore) RangeMarkers(ctx context.Context, partition int) ([]backup.RangeMarker, error) {
	rows, err := s.db.QueryContext(ctx, selectMarkers, partition)
	if err != nil {
		return nil, backup.NewStoreError("sqlite", "list_markers", err)
	}
	defer rows.Close()

	markers := []backup.RangeMarker{}
	for rows.Next() {
		var (
			kind         string
			checkpointID int64
		)
		if err := rows.Scan(&kind, &checkpointID); err != nil {
			return nil, backup.NewStoreError("sqlite", "scan", err)
		}
		markerKind, err := backup.ParseMarkerKind(kind)
		if err != nil {
			return nil, backup.NewStoreError("sqlite", "scan", err)
		}
		markers = append(markers, backup.RangeMarker{Kind: markerKind, CheckpointID: checkpointID})
	}

	if err := rows.Err(); err != nil {
		return nil, backup.NewStoreError("sqlite", "list_markers", err)
	}

	slices.SortFunc(markers, backup.CompareMarkers)
	return markers, nil
}

// StoreRangeMarker adds a marker to a partition.
func (s *SQLiteStore) StoreRangeMarker(ctx context.Context, partition int, marker backup.RangeMarker) error {
	if _, err := s.db.ExecContext(ctx, insertMarker, partition, marker.Kind.String(), marker.CheckpointID); err != nil {
		return backup.NewStoreError("sqlite", "store_marker", err)
	}
	return nil
}

// DeleteRangeMarker removes a marker from a partition if it exists.
func (s *SQLiteStore) DeleteRangeMarker(ctx context.Context, partition int, marker backup.RangeMarker) error {
	if _, err := s.db.ExecContext(ctx, deleteMarker, partition, marker.Kind.String(), marker.CheckpointID); err != nil {
		return backup.NewStoreError("sqlite", "delete_marker", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return backup.NewStoreError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return backup.NewStoreError("sqlite", "close", err)
	}

	s.logger.Info("SQLite store closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from a wildcard.
// Returns the WHERE clause (without "WHERE" keyword) and the query arguments.
func buildWhereClause(wildcard backup.Wildcard) (string, []any) {
	var conditions []string
	var args []any

	if wildcard.PartitionID != nil {
		conditions = append(conditions, "partition_id = ?")
		args = append(args, *wildcard.PartitionID)
	}
	if wildcard.NodeID != nil {
		conditions = append(conditions, "node_id = ?")
		args = append(args, *wildcard.NodeID)
	}

	if iv, ok := wildcard.Checkpoint.Interval(); ok {
		startOp, endOp := ">", "<"
		if iv.StartInclusive() {
			startOp = ">="
		}
		if iv.EndInclusive() {
			endOp = "<="
		}
		conditions = append(conditions, "checkpoint_id "+startOp+" ?", "checkpoint_id "+endOp+" ?")
		args = append(args, iv.Start(), iv.End())
	}

	return strings.Join(conditions, " AND "), args
}

// scanStatus scans a backups row into a Status.
func scanStatus(rows *sql.Rows) (backup.Status, error) {
	var (
		status        backup.Status
		code          string
		failureReason sql.NullString
		descriptor    sql.NullString
		created       sql.NullInt64
		lastModified  sql.NullInt64
	)

	err := rows.Scan(
		&status.ID.PartitionID, &status.ID.NodeID, &status.ID.CheckpointID,
		&code, &failureReason, &descriptor, &created, &lastModified,
	)
	if err != nil {
		return backup.Status{}, err
	}

	if status.Code, err = backup.ParseStatusCode(code); err != nil {
		return backup.Status{}, err
	}
	status.FailureReason = failureReason.String

	if descriptor.Valid {
		var d backup.Descriptor
		if err := json.Unmarshal([]byte(descriptor.String), &d); err != nil {
			return backup.Status{}, fmt.Errorf("failed to decode descriptor of %s: %w", status.ID, err)
		}
		status.Descriptor = &d
	}
	if created.Valid {
		status.Created = time.Unix(0, created.Int64).UTC()
	}
	if lastModified.Valid {
		status.LastModified = time.Unix(0, lastModified.Int64).UTC()
	}

	return status, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}
