package buffer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrChannelFull is returned by Enqueue when a channel reached its configured size.
var ErrChannelFull = errors.New("buffer: channel is full")

// Options tune a Store.
type Options struct {
	// MaxSize caps the number of items per channel. Zero means unbounded.
	MaxSize int
	Timeout time.Duration
}

// Store wraps one BoltDB file holding every durable channel of a service.
type Store struct {
	db      *bolt.DB
	maxSize int
}

// Channel is a named FIFO bucket inside a Store.
type Channel struct {
	store  *Store
	bucket []byte
}

// Open initializes the BoltDB file.
func Open(path string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, maxSize: opts.MaxSize}, nil
}

// Channel returns the channel called name, creating its bucket on first use.
func (s *Store) Channel(name string) (*Channel, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if name == "" {
		return nil, errors.New("buffer: channel name is required")
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	}); err != nil {
		return nil, err
	}
	return &Channel{store: s, bucket: []byte(name)}, nil
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return string(c.bucket)
}

// Enqueue appends an item behind everything of the same priority.
func (c *Channel) Enqueue(item Item) error {
	return c.store.db.Update(func(tx *bolt.Tx) error {
		return c.put(tx.Bucket(c.bucket), &item)
	})
}

// GetBatch returns up to limit ready items without removing them. An item that is not
// ready yet blocks every later item with the same key.
func (c *Channel) GetBatch(limit int, now time.Time) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := c.store.db.View(func(tx *bolt.Tx) error {
		blocked := make(map[string]struct{})
		cur := tx.Bucket(c.bucket).Cursor()
		for k, v := cur.First(); k != nil && len(items) < limit; k, v = cur.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if _, ok := blocked[item.Key]; ok {
				continue
			}
			if !item.Ready(now) {
				blocked[item.Key] = struct{}{}
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes the provided item from the channel.
func (c *Channel) Remove(item Item) error {
	return c.store.db.Update(func(tx *bolt.Tx) error {
		return c.remove(tx.Bucket(c.bucket), item)
	})
}

// Requeue rewrites an item in place so it keeps its position within its key.
func (c *Channel) Requeue(item Item) error {
	if len(item.bucketKey) == 0 {
		return fmt.Errorf("buffer: requeue of item %s that was not read from %s", item.ID, c.Name())
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return c.store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Put(item.bucketKey, payload)
	})
}

// MoveTo removes item from c and appends it to dst in one Bolt transaction.
func (c *Channel) MoveTo(item Item, dst *Channel) error {
	return c.store.db.Update(func(tx *bolt.Tx) error {
		if err := c.remove(tx.Bucket(c.bucket), item); err != nil {
			return err
		}
		item.bucketKey = nil
		return dst.put(tx.Bucket(dst.bucket), &item)
	})
}

// Size returns the number of items in the channel.
func (c *Channel) Size() (int, error) {
	var count int
	err := c.store.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(c.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes items enqueued before olderThan and returns how many were dropped.
func (c *Channel) Cleanup(olderThan time.Time) (int, error) {
	var removed int
	err := c.store.db.Update(func(tx *bolt.Tx) error {
		cur := tx.Bucket(c.bucket).Cursor()
		for k, v := cur.First(); k != nil; {
			var item Item
			if err := json.Unmarshal(v, &item); err == nil && item.Timestamp.Before(olderThan) {
				if err := cur.Delete(); err != nil {
					return err
				}
				removed++
				k, v = cur.Seek(k)
				continue
			}
			k, v = cur.Next()
		}
		return nil
	})
	return removed, err
}

func (c *Channel) put(b *bolt.Bucket, item *Item) error {
	if max := c.store.maxSize; max > 0 && b.Stats().KeyN >= max {
		return ErrChannelFull
	}
	item.normalize()
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	item.bucketKey = buildKey(item.Priority, seq)

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return b.Put(item.bucketKey, payload)
}

func (c *Channel) remove(b *bolt.Bucket, item Item) error {
	if len(item.bucketKey) > 0 {
		return b.Delete(item.bucketKey)
	}
	if item.ID == "" {
		return nil
	}
	cur := b.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		var stored Item
		if err := json.Unmarshal(v, &stored); err != nil {
			continue
		}
		if stored.ID == item.ID {
			return cur.Delete()
		}
	}
	return nil
}

func buildKey(priority int, seq uint64) []byte {
	return []byte(fmt.Sprintf("%d_%020d", priority, seq))
}
