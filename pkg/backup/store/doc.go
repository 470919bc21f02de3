// Package store provides implementations of backup.Store.
//
// The store package provides multiple implementations:
//
//   - Memory: in-memory maps, for tests and dry runs
//   - SQLite: a local catalog database, using either the pure Go
//     modernc.org/sqlite driver ("sqlite", the default) or the cgo
//     github.com/mattn/go-sqlite3 driver ("sqlite3")
//   - S3: object storage through aws-sdk-go-v2, one JSON status object per
//     backup copy and one empty object per range marker
//
// All implementations are safe for concurrent use, treat deletes of missing
// entries as success, and return errors wrapped in *backup.StoreError.
//
// # Example
//
//	st, err := store.New(ctx, store.Config{
//	    Backend: store.BackendSQLite,
//	    SQLite:  &store.SQLiteConfig{Path: "data/backups.db"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
package store
