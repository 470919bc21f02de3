package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/backstop/pkg/backup"
	"mercator-hq/backstop/pkg/backup/interval"
)

type storeFactory func(t *testing.T) backup.Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) backup.Store {
			return NewMemoryStore()
		},
		"sqlite/modernc": func(t *testing.T) backup.Store {
			return newTestSQLiteStore(t, DriverModernc)
		},
		"sqlite/mattn": func(t *testing.T) backup.Store {
			return newTestSQLiteStore(t, DriverMattn)
		},
		"s3": func(t *testing.T) backup.Store {
			return NewS3StoreWithClient(newFakeS3(), S3Config{Bucket: "backups", Prefix: "cluster-a"})
		},
		"s3/no-prefix": func(t *testing.T) backup.Store {
			return NewS3StoreWithClient(newFakeS3(), S3Config{Bucket: "backups"})
		},
	}
}

func newTestSQLiteStore(t *testing.T, driver string) *SQLiteStore {
	t.Helper()

	config := &SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		Driver:       driver,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}

	st, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	return st
}

func testStatus(node, partition int, checkpoint int64, code backup.StatusCode) backup.Status {
	first := checkpoint * 10
	return backup.Status{
		ID:   backup.Identifier{NodeID: node, PartitionID: partition, CheckpointID: checkpoint},
		Code: code,
		Descriptor: &backup.Descriptor{
			FirstLogPosition:    &first,
			CheckpointPosition:  checkpoint*10 + 9,
			NumberOfPartitions:  3,
			BrokerVersion:       "8.6.0",
			CheckpointTimestamp: time.UnixMilli(checkpoint).UTC(),
			CheckpointType:      backup.CheckpointScheduled,
		},
		Created:      time.UnixMilli(checkpoint).UTC(),
		LastModified: time.UnixMilli(checkpoint + 1).UTC(),
	}
}

func checkpointIDs(statuses []backup.Status) []int64 {
	ids := make([]int64, len(statuses))
	for i, s := range statuses {
		ids[i] = s.ID.CheckpointID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestStores_Behaviour runs the same behaviour table against every store.
func TestStores_Behaviour(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Run("save and list", func(t *testing.T) {
				st := factory(t)
				defer st.Close()
				testSaveAndList(t, st)
			})
			t.Run("list by wildcard", func(t *testing.T) {
				st := factory(t)
				defer st.Close()
				testListByWildcard(t, st)
			})
			t.Run("delete is idempotent", func(t *testing.T) {
				st := factory(t)
				defer st.Close()
				testDeleteIdempotent(t, st)
			})
			t.Run("range markers", func(t *testing.T) {
				st := factory(t)
				defer st.Close()
				testRangeMarkers(t, st)
			})
			t.Run("rejects invalid status", func(t *testing.T) {
				st := factory(t)
				defer st.Close()

				err := st.Save(context.Background(), backup.Status{ID: backup.Identifier{PartitionID: 0}})
				var storeErr *backup.StoreError
				if !errors.As(err, &storeErr) {
					t.Errorf("expected *backup.StoreError, got %v", err)
				}
			})
		})
	}
}

func testSaveAndList(t *testing.T, st backup.Store) {
	ctx := context.Background()

	want := testStatus(0, 1, 100, backup.StatusCompleted)
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := st.List(ctx, backup.ForPartition(1, backup.AnyCheckpoint()))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() returned %d statuses, want 1", len(got))
	}

	s := got[0]
	if s.ID != want.ID || s.Code != backup.StatusCompleted {
		t.Errorf("List() = %+v, want %+v", s.ID, want.ID)
	}
	if s.Descriptor == nil || s.Descriptor.CheckpointPosition != 1009 {
		t.Fatalf("descriptor not preserved: %+v", s.Descriptor)
	}
	if s.Descriptor.FirstLogPosition == nil || *s.Descriptor.FirstLogPosition != 1000 {
		t.Errorf("first log position not preserved")
	}
	if !s.Descriptor.CheckpointTimestamp.Equal(want.Descriptor.CheckpointTimestamp) {
		t.Errorf("checkpoint timestamp = %v, want %v", s.Descriptor.CheckpointTimestamp, want.Descriptor.CheckpointTimestamp)
	}
	if !s.Created.Equal(want.Created) || !s.LastModified.Equal(want.LastModified) {
		t.Errorf("timestamps not preserved: created=%v last_modified=%v", s.Created, s.LastModified)
	}

	// Save replaces the existing status.
	failed := want
	failed.Code = backup.StatusFailed
	failed.FailureReason = "disk full"
	failed.Descriptor = nil
	failed.Created = time.Time{}
	if err := st.Save(ctx, failed); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err = st.List(ctx, backup.ForPartition(1, backup.AnyCheckpoint()))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 1 || got[0].Code != backup.StatusFailed || got[0].FailureReason != "disk full" {
		t.Fatalf("List() after replace = %+v", got)
	}
	if got[0].Descriptor != nil || !got[0].Created.IsZero() {
		t.Errorf("absent fields should stay absent: descriptor=%v created=%v", got[0].Descriptor, got[0].Created)
	}
}

func testListByWildcard(t *testing.T, st backup.Store) {
	ctx := context.Background()

	for _, s := range []backup.Status{
		testStatus(0, 1, 100, backup.StatusCompleted),
		testStatus(1, 1, 100, backup.StatusCompleted),
		testStatus(0, 1, 200, backup.StatusFailed),
		testStatus(0, 1, 1000, backup.StatusCompleted),
		testStatus(0, 2, 100, backup.StatusCompleted),
		testStatus(0, 10, 300, backup.StatusCompleted),
	} {
		if err := st.Save(ctx, s); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	window, err := interval.Closed[int64](100, 200)
	if err != nil {
		t.Fatalf("interval.Closed() failed: %v", err)
	}
	halfOpen, err := interval.ClosedOpen[int64](100, 200)
	if err != nil {
		t.Fatalf("interval.ClosedOpen() failed: %v", err)
	}

	tests := []struct {
		name     string
		wildcard backup.Wildcard
		want     []int64
	}{
		{name: "all", wildcard: backup.AllBackups(), want: []int64{100, 100, 200, 1000, 100, 300}},
		{name: "partition", wildcard: backup.ForPartition(1, backup.AnyCheckpoint()), want: []int64{100, 100, 200, 1000}},
		{name: "partition prefix is not ambiguous", wildcard: backup.ForPartition(10, backup.AnyCheckpoint()), want: []int64{300}},
		{name: "exact checkpoint", wildcard: backup.ForPartition(1, backup.ExactCheckpoint(100)), want: []int64{100, 100}},
		{name: "checkpoint interval", wildcard: backup.ForPartition(1, backup.CheckpointsIn(window)), want: []int64{100, 100, 200}},
		{name: "exclusive end", wildcard: backup.ForPartition(1, backup.CheckpointsIn(halfOpen)), want: []int64{100, 100}},
		{name: "node", wildcard: backup.ForNode(1, 1, backup.AnyCheckpoint()), want: []int64{100}},
		{name: "no match", wildcard: backup.ForPartition(3, backup.AnyCheckpoint()), want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.List(ctx, tt.wildcard)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if got == nil {
				t.Fatal("List() returned nil, want empty slice")
			}
			if ids := checkpointIDs(got); !equalIDs(ids, tt.want) {
				t.Errorf("List(%s) = %v, want %v", tt.wildcard, ids, tt.want)
			}
		})
	}
}

func testDeleteIdempotent(t *testing.T, st backup.Store) {
	ctx := context.Background()

	s := testStatus(0, 1, 100, backup.StatusCompleted)
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := st.Delete(ctx, s.ID); err != nil {
			t.Fatalf("Delete() #%d failed: %v", i+1, err)
		}
	}

	got, err := st.List(ctx, backup.AllBackups())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() after delete = %v, want empty", checkpointIDs(got))
	}
}

func testRangeMarkers(t *testing.T, st backup.Store) {
	ctx := context.Background()

	for _, m := range []backup.RangeMarker{backup.End(300), backup.Start(100), backup.Deletion(200), backup.Start(-50)} {
		if err := st.StoreRangeMarker(ctx, 1, m); err != nil {
			t.Fatalf("StoreRangeMarker(%s) failed: %v", m, err)
		}
	}
	// Storing twice is a no-op.
	if err := st.StoreRangeMarker(ctx, 1, backup.Start(100)); err != nil {
		t.Fatalf("StoreRangeMarker() failed: %v", err)
	}
	if err := st.StoreRangeMarker(ctx, 2, backup.Start(999)); err != nil {
		t.Fatalf("StoreRangeMarker() failed: %v", err)
	}

	markers, err := st.RangeMarkers(ctx, 1)
	if err != nil {
		t.Fatalf("RangeMarkers() failed: %v", err)
	}
	want := []backup.RangeMarker{backup.Start(-50), backup.Start(100), backup.Deletion(200), backup.End(300)}
	if len(markers) != len(want) {
		t.Fatalf("RangeMarkers() = %v, want %v", markers, want)
	}
	for i := range want {
		if markers[i] != want[i] {
			t.Errorf("RangeMarkers()[%d] = %s, want %s", i, markers[i], want[i])
		}
	}

	if err := st.DeleteRangeMarker(ctx, 1, backup.Deletion(200)); err != nil {
		t.Fatalf("DeleteRangeMarker() failed: %v", err)
	}
	if err := st.DeleteRangeMarker(ctx, 1, backup.Deletion(200)); err != nil {
		t.Fatalf("DeleteRangeMarker() of missing marker failed: %v", err)
	}

	markers, err = st.RangeMarkers(ctx, 1)
	if err != nil {
		t.Fatalf("RangeMarkers() failed: %v", err)
	}
	if len(markers) != 3 {
		t.Errorf("RangeMarkers() after delete = %v, want 3 markers", markers)
	}

	empty, err := st.RangeMarkers(ctx, 7)
	if err != nil {
		t.Fatalf("RangeMarkers() failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("RangeMarkers() of unknown partition = %v, want empty slice", empty)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	st := NewMemoryStore()
	st.Close()

	_, err := st.List(context.Background(), backup.AllBackups())
	if !errors.Is(err, backup.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if err := st.Ping(context.Background()); !errors.Is(err, backup.ErrStoreClosed) {
		t.Errorf("Ping() expected ErrStoreClosed, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	if err := st.Save(ctx, testStatus(0, 1, 100, backup.StatusCompleted)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, _ := st.List(ctx, backup.AllBackups())
	*got[0].Descriptor.FirstLogPosition = 42

	again, _ := st.List(ctx, backup.AllBackups())
	if *again[0].Descriptor.FirstLogPosition != 1000 {
		t.Error("mutating a listed status changed the stored status")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "memory", config: Config{Backend: BackendMemory}},
		{name: "default", config: Config{}},
		{name: "sqlite", config: Config{Backend: BackendSQLite, SQLite: &SQLiteConfig{Path: filepath.Join(t.TempDir(), "new.db")}}},
		{name: "sqlite bad driver", config: Config{Backend: BackendSQLite, SQLite: &SQLiteConfig{Path: "x.db", Driver: "postgres"}}, wantErr: true},
		{name: "s3 without config", config: Config{Backend: BackendS3}, wantErr: true},
		{name: "s3 without bucket", config: Config{Backend: BackendS3, S3: &S3Config{Region: "us-east-1"}}, wantErr: true},
		{name: "unknown", config: Config{Backend: "tape"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := New(ctx, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if st != nil {
				st.Close()
			}
		})
	}
}
