package store

import (
	"context"
	"errors"
	"slices"
	"testing"

	"mercator-hq/backstop/pkg/backup"
)

func TestS3Store_ObjectLayout(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3StoreWithClient(fake, S3Config{Bucket: "backups", Prefix: "/cluster-a/"})

	if err := st.Save(ctx, testStatus(2, 1, 100, backup.StatusCompleted)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := st.StoreRangeMarker(ctx, 1, backup.Start(100)); err != nil {
		t.Fatalf("StoreRangeMarker() failed: %v", err)
	}
	if err := st.StoreRangeMarker(ctx, 1, backup.Deletion(-5)); err != nil {
		t.Fatalf("StoreRangeMarker() failed: %v", err)
	}

	want := []string{
		"cluster-a/1/100/2/status.json",
		"cluster-a/ranges/1/deletion--5",
		"cluster-a/ranges/1/start-100",
	}
	if got := fake.keys(); !slices.Equal(got, want) {
		t.Errorf("object keys = %v, want %v", got, want)
	}
}

func TestS3Store_SkipsForeignObjects(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["cluster-a/1/100/0/snapshot.tar"] = []byte("data")
	fake.objects["cluster-a/1/notanumber/0/status.json"] = []byte("{}")
	fake.objects["cluster-a/ranges/1/bogus"] = nil
	fake.objects["cluster-b/1/100/0/status.json"] = []byte("{}")

	st := NewS3StoreWithClient(fake, S3Config{Bucket: "backups", Prefix: "cluster-a"})
	if err := st.Save(ctx, testStatus(0, 1, 200, backup.StatusCompleted)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	statuses, err := st.List(ctx, backup.AllBackups())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if ids := checkpointIDs(statuses); !equalIDs(ids, []int64{200}) {
		t.Errorf("List() = %v, want [200]", ids)
	}

	markers, err := st.RangeMarkers(ctx, 1)
	if err != nil {
		t.Fatalf("RangeMarkers() failed: %v", err)
	}
	if len(markers) != 0 {
		t.Errorf("RangeMarkers() = %v, want none", markers)
	}
}

func TestS3Store_Pagination(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3StoreWithClient(fake, S3Config{Bucket: "backups", FetchConcurrency: 2})

	for i := int64(1); i <= 7; i++ {
		if err := st.Save(ctx, testStatus(0, 1, i*100, backup.StatusCompleted)); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	statuses, err := st.List(ctx, backup.ForPartition(1, backup.AnyCheckpoint()))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(statuses) != 7 {
		t.Errorf("List() returned %d statuses, want 7", len(statuses))
	}
	if fake.pages < 4 {
		t.Errorf("expected at least 4 listing pages, got %d", fake.pages)
	}
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.listErr = errors.New("connection reset")
	st := NewS3StoreWithClient(fake, S3Config{Bucket: "backups"})

	_, err := st.List(ctx, backup.AllBackups())
	var storeErr *backup.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *backup.StoreError, got %v", err)
	}
	if storeErr.Backend != "s3" || storeErr.Operation != "list" {
		t.Errorf("StoreError = %+v", storeErr)
	}

	if err := st.Ping(ctx); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}

	st.Close()
	if err := st.Save(ctx, testStatus(0, 1, 100, backup.StatusCompleted)); !errors.Is(err, backup.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed after Close, got %v", err)
	}
}
