package cache

import (
	"fmt"
	"os"
	"path/filepath"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// BoltCache stores every tile in a single bbolt database, one bucket per
// source keyed by z/x/y.format.
type BoltCache struct {
	db  *bbolt.DB
	log *zap.Logger
}

func NewBoltCache(path string, log *zap.Logger) (*BoltCache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bbolt.Open(path, 0660, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache: %w", err)
	}
	return &BoltCache{db: db, log: log}, nil
}

func (c *BoltCache) Has(key TileKey) bool {
	found := false
	c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(key.Source))
		if b == nil {
			return nil
		}
		found = b.Get([]byte(key.String())) != nil
		return nil
	})
	return found
}

func (c *BoltCache) Get(key TileKey) ([]byte, bool) {
	var data []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(key.Source))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key.String())); v != nil {
			// v is only valid inside the transaction
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false
	}
	return data, true
}

func (c *BoltCache) Set(key TileKey, value []byte) {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key.Source))
		if err != nil {
			return err
		}
		return b.Put([]byte(key.String()), value)
	})
	if err != nil {
		c.log.Warn("Failed to store tile", zap.String("source", key.Source), zap.Stringer("key", key), zap.Error(err))
	}
}

func (c *BoltCache) Clear() {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.log.Warn("Failed to clear bolt cache", zap.Error(err))
	}
}

// Count reports the number of tiles and their total size for one source.
func (c *BoltCache) Count(source string) (tiles int, bytes int64) {
	c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(source))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			tiles++
			bytes += int64(len(v))
			return nil
		})
	})
	return tiles, bytes
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
