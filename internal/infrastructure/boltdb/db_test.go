package boltdb

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesBuckets(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "dayflow.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := Ping(db); err != nil {
		t.Fatalf("ping: %v", err)
	}
	for _, bucket := range []string{BucketTasks, BucketTemplates, BucketSessions} {
		n, err := Slots(db, bucket)
		if err != nil {
			t.Fatalf("slots %s: %v", bucket, err)
		}
		if n != 0 {
			t.Errorf("expected empty bucket %s, got %d keys", bucket, n)
		}
	}
}

func TestPingClosed(t *testing.T) {
	if err := Ping(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}
