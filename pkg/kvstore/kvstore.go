// Package kvstore is the Key-Value Store Adapter (§4.1): a minimal
// prefix-scannable, single-key-mutation store with watch, backed by
// go.etcd.io/bbolt. Every persisted object lives in one bucket keyed by
// "{kind}/{uuid}" (the same key Key() on each spec type produces),
// so prefix scans by kind are a bucket-wide ForEach with a string prefix
// check rather than a per-kind bucket.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketObjects = []byte("objects")

// ErrNotFound is returned by GetObj/GetOpaque when the key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// ErrTimeout is returned when an operation exceeds its configured timeout.
var ErrTimeout = errors.New("kvstore: operation timed out")

// WatchEventKind distinguishes a watch stream's two event shapes.
type WatchEventKind string

const (
	WatchPut    WatchEventKind = "Put"
	WatchDelete WatchEventKind = "Delete"
)

// WatchEvent is delivered on a watch channel for every mutation of the
// watched key.
type WatchEvent struct {
	Kind  WatchEventKind
	Key   string
	Value []byte
}

// Store is the interface the rest of the core agent (pkg/specs,
// pkg/registry) depends on; BoltStore is its only implementation but
// callers should accept this interface, not the concrete type, so tests can
// substitute an in-memory fake.
type Store interface {
	PutObj(ctx context.Context, key string, value any) error
	GetObj(ctx context.Context, key string, out any) error
	GetOpaque(ctx context.Context, key string) ([]byte, error)
	GetValuesPrefix(ctx context.Context, prefix string) ([][]byte, error)
	DeleteObj(ctx context.Context, key string) error
	Watch(ctx context.Context, key string) (<-chan WatchEvent, func())
	Online() bool
	Close() error
}

// BoltStore is the bbolt-backed Store implementation. Every call runs in a
// goroutine bounded by the configured timeout so a slow disk degrades to a
// timeout error rather than blocking the engine indefinitely; a failed
// operation never poisons the store — the next call opens a fresh
// transaction from scratch.
type BoltStore struct {
	db      *bolt.DB
	timeout time.Duration

	mu       sync.Mutex
	watchers map[string][]chan WatchEvent
}

// Open opens (creating if absent) a bbolt database at path, with timeout
// applied to every subsequent operation.
func Open(path string, timeout time.Duration) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketObjects)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create object bucket: %w", err)
	}
	return &BoltStore{db: db, timeout: timeout, watchers: make(map[string][]chan WatchEvent)}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// Online is a best-effort liveness probe: a zero-length read-only
// transaction that only fails if bbolt's file lock or mmap is broken.
func (s *BoltStore) Online() bool {
	err := s.db.View(func(tx *bolt.Tx) error {
		return nil
	})
	return err == nil
}

func (s *BoltStore) withTimeout(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-time.After(s.timeout):
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *BoltStore) PutObj(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: serialize %s: %w", key, err)
	}
	err = s.withTimeout(ctx, func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketObjects).Put([]byte(key), data)
		})
	})
	if err != nil {
		return err
	}
	s.notify(WatchEvent{Kind: WatchPut, Key: key, Value: data})
	return nil
}

func (s *BoltStore) GetObj(ctx context.Context, key string, out any) error {
	data, err := s.GetOpaque(ctx, key)
	if err != nil {
		return err
	}
	return UnmarshalStrict(data, out)
}

// UnmarshalStrict decodes data into out, rejecting unknown fields: a store
// written by a newer, incompatible version must fail closed rather than
// silently drop fields the running binary doesn't understand. Exported so
// callers that bulk-load via GetValuesPrefix (pkg/registry's Init) can apply
// the same strictness per value.
func UnmarshalStrict(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func (s *BoltStore) GetOpaque(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.withTimeout(ctx, func() error {
		return s.db.View(func(tx *bolt.Tx) error {
			v := tx.Bucket(bucketObjects).Get([]byte(key))
			if v == nil {
				return ErrNotFound
			}
			data = append([]byte(nil), v...)
			return nil
		})
	})
	return data, err
}

func (s *BoltStore) GetValuesPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var out [][]byte
	err := s.withTimeout(ctx, func() error {
		return s.db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucketObjects).Cursor()
			p := []byte(prefix)
			for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
				out = append(out, append([]byte(nil), v...))
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteObj(ctx context.Context, key string) error {
	err := s.withTimeout(ctx, func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketObjects).Delete([]byte(key))
		})
	})
	if err != nil {
		return err
	}
	s.notify(WatchEvent{Kind: WatchDelete, Key: key})
	return nil
}

// Watch returns a channel that receives every Put/Delete against key until
// the returned cancel function is called or ctx is done. bbolt has no
// native change notification, so this is a small in-process pub-sub layered
// on top of Put/Delete — it only observes mutations made through this same
// BoltStore instance, which is the only writer in this process's design.
func (s *BoltStore) Watch(ctx context.Context, key string) (<-chan WatchEvent, func()) {
	ch := make(chan WatchEvent, 16)

	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.watchers[key]
			for i, c := range subs {
				if c == ch {
					s.watchers[key] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

func (s *BoltStore) notify(ev WatchEvent) {
	s.mu.Lock()
	subs := append([]chan WatchEvent(nil), s.watchers[ev.Key]...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// A slow watcher does not block a write; it simply misses this
			// event, matching the adapter's best-effort watch contract.
		}
	}
}
