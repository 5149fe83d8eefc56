package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var blobsBucket = []byte("blobs")

// Bolt stores blobs in a single bbolt file. One Update transaction per
// write gives atomic publish; readers run in View transactions and copy the
// value out before the transaction ends.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the bolt file at path.
func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", blobsBucket, err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Write(ctx context.Context, src io.Reader, dst string) error {
	key, err := normalizePath(dst)
	if err != nil {
		return err
	}
	content, err := io.ReadAll(&contextReader{ctx: ctx, r: src})
	if err != nil {
		return writeError(dst, err)
	}
	if content == nil {
		content = []byte{}
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobsBucket).Put([]byte(key), content)
	})
	if err != nil {
		return writeError(dst, err)
	}
	return nil
}

func (b *Bolt) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	key, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	var content []byte
	err = b.db.View(func(tx *bolt.Tx) error {
		v, ok := lookup(tx.Bucket(blobsBucket), []byte(key))
		if !ok {
			return ErrNotFound
		}
		// Only valid during the transaction.
		content = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *Bolt) Delete(ctx context.Context, path string) error {
	key, err := normalizePath(path)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(blobsBucket)
		if _, ok := lookup(bucket, []byte(key)); !ok {
			return ErrNotFound
		}
		return bucket.Delete([]byte(key))
	})
}

// lookup distinguishes a missing key from a key holding an empty value,
// which Get alone cannot do.
func lookup(bucket *bolt.Bucket, key []byte) ([]byte, bool) {
	k, v := bucket.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, false
	}
	return v, true
}
