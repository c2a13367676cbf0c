package boltdb

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the local store.
const (
	BucketTasks     = "tasks"
	BucketTemplates = "templates"
	BucketSessions  = "sessions"
)

// Open initializes the BoltDB file and ensures the buckets exist. With no
// buckets given, the local store buckets are created.
func Open(path string, buckets ...string) (*bolt.DB, error) {
	if len(buckets) == 0 {
		buckets = []string{BucketTasks, BucketTemplates, BucketSessions}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Ping verifies the database is open and readable.
func Ping(db *bolt.DB) error {
	if db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(BucketTasks)) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}

// Slots returns the number of keys held in bucket.
func Slots(db *bolt.DB, bucket string) (int, error) {
	if db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		count = b.Stats().KeyN
		return nil
	})
	return count, err
}
