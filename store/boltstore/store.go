package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/store"
	"github.com/kbukum/viewkit/stream"
)

const (
	initialMmapSize = 1024 * 1024 * 16
	openTimeout     = 3 * time.Second
	filePerm        = 0o600
)

var (
	rootBucket    = []byte("collections")
	docsBucket    = []byte("docs")
	indexesBucket = []byte("indexes")
	entriesBucket = []byte("entries")
	declared      = []byte{1}
	present       = []byte{1}
)

func init() {
	store.RegisterFactory(store.DriverBolt, func(cfg store.Config, log *logger.Logger) (store.Backend, error) {
		return Open(cfg.Path, cfg.PageSize, log)
	})
}

// Store is a bbolt-backed set of collections.
type Store struct {
	db          *bolt.DB
	pageSize    int
	log         *logger.Logger
	mu          sync.Mutex
	collections map[string]*Collection
}

var _ store.Backend = (*Store)(nil)

// Open opens or creates the bolt file at path.
func Open(path string, pageSize int, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if pageSize <= 0 {
		pageSize = 256
	}
	db, err := bolt.Open(path, filePerm, &bolt.Options{
		InitialMmapSize: initialMmapSize,
		Timeout:         openTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("boltstore: init %s: %w", path, err)
	}
	log.Debug("bolt store ready", logger.Fields("path", path))
	return &Store{db: db, pageSize: pageSize, log: log, collections: make(map[string]*Collection)}, nil
}

func (s *Store) Collection(name string) (collection.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{store: s, name: name, key: []byte(name)}
		s.collections[name] = c
	}
	return c, nil
}

func (s *Store) Names(context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).ForEachBucket(func(k []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) CheckHealth(context.Context) observability.Health {
	h := observability.Health{
		Name:    store.DriverBolt,
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"path": s.db.Path()},
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		h.Details["size_bytes"] = fmt.Sprint(tx.Size())
		return nil
	})
	if err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
	}
	return h
}

func (s *Store) Close() error { return s.db.Close() }

// Collection is one named collection inside a Store.
type Collection struct {
	store *Store
	name  string
	key   []byte
}

var (
	_ collection.Indexed  = (*Collection)(nil)
	_ collection.Writable = (*Collection)(nil)
)

func (c *Collection) Name() string { return c.name }

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func entryKey(hash, seq uint64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k, hash)
	binary.BigEndian.PutUint64(k[8:], seq)
	return k
}

// bucket returns the collection's sub-bucket, or nil if it does not exist yet.
func (c *Collection) bucket(tx *bolt.Tx, sub []byte) *bolt.Bucket {
	b := tx.Bucket(rootBucket).Bucket(c.key)
	if b == nil {
		return nil
	}
	return b.Bucket(sub)
}

func (c *Collection) ensure(tx *bolt.Tx) (docs, indexes, entries *bolt.Bucket, err error) {
	b, err := tx.Bucket(rootBucket).CreateBucketIfNotExists(c.key)
	if err != nil {
		return nil, nil, nil, err
	}
	if docs, err = b.CreateBucketIfNotExists(docsBucket); err != nil {
		return nil, nil, nil, err
	}
	if indexes, err = b.CreateBucketIfNotExists(indexesBucket); err != nil {
		return nil, nil, nil, err
	}
	entries, err = b.CreateBucketIfNotExists(entriesBucket)
	return docs, indexes, entries, err
}

// Scan pages through the docs bucket up to the last sequence assigned when
// the scan started.
func (c *Collection) Scan(ctx context.Context) (stream.Iterator[*document.Document], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var upto uint64
	err := c.store.db.View(func(tx *bolt.Tx) error {
		if docs := c.bucket(tx, docsBucket); docs != nil {
			upto = docs.Sequence()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(c.name, err)
	}
	return store.Paged(c.page, int64(upto), c.store.pageSize), nil
}

func (c *Collection) page(_ context.Context, after, upto int64, limit int) ([]*document.Document, int64, error) {
	var out []*document.Document
	last := after
	err := c.store.db.View(func(tx *bolt.Tx) error {
		docs := c.bucket(tx, docsBucket)
		if docs == nil {
			return nil
		}
		cur := docs.Cursor()
		for k, v := cur.Seek(seqKey(uint64(after) + 1)); k != nil && len(out) < limit; k, v = cur.Next() {
			seq := int64(binary.BigEndian.Uint64(k))
			if seq > upto {
				break
			}
			d, err := store.Decode(v)
			if err != nil {
				return fmt.Errorf("document %d: %w", seq, err)
			}
			out = append(out, d)
			last = seq
		}
		return nil
	})
	if err != nil {
		return nil, after, errors.Storage(c.name, err)
	}
	return out, last, nil
}

func addEntries(entries *bolt.Bucket, d *document.Document, field string, seq uint64) error {
	fb, err := entries.CreateBucketIfNotExists([]byte(field))
	if err != nil {
		return err
	}
	for _, h := range store.KeyHashes(d, field) {
		if err := fb.Put(entryKey(h, seq), present); err != nil {
			return err
		}
	}
	return nil
}

// Insert appends docs in one write transaction, maintaining every index.
func (c *Collection) Insert(ctx context.Context, docs ...*document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.store.db.Update(func(tx *bolt.Tx) error {
		stored, indexes, entries, err := c.ensure(tx)
		if err != nil {
			return err
		}
		var fields []string
		if err := indexes.ForEach(func(k, _ []byte) error {
			fields = append(fields, string(k))
			return nil
		}); err != nil {
			return err
		}
		for _, d := range docs {
			body, err := store.Encode(d)
			if err != nil {
				return err
			}
			seq, err := stored.NextSequence()
			if err != nil {
				return err
			}
			if err := stored.Put(seqKey(seq), body); err != nil {
				return err
			}
			for _, f := range fields {
				if err := addEntries(entries, d, f, seq); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errors.Storage(c.name, err)
	}
	return nil
}

// CreateIndex declares an index on field and fills it from the stored
// documents. Creating an existing index is a no-op.
func (c *Collection) CreateIndex(ctx context.Context, field string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.store.db.Update(func(tx *bolt.Tx) error {
		docs, indexes, entries, err := c.ensure(tx)
		if err != nil {
			return err
		}
		if indexes.Get([]byte(field)) != nil {
			return nil
		}
		if err := indexes.Put([]byte(field), declared); err != nil {
			return err
		}
		if _, err := entries.CreateBucketIfNotExists([]byte(field)); err != nil {
			return err
		}
		return docs.ForEach(func(k, v []byte) error {
			d, err := store.Decode(v)
			if err != nil {
				return err
			}
			return addEntries(entries, d, field, binary.BigEndian.Uint64(k))
		})
	})
	if err != nil {
		return errors.Storage(c.name, err)
	}
	return nil
}

func (c *Collection) HasIndex(field string) bool {
	found := false
	_ = c.store.db.View(func(tx *bolt.Tx) error {
		if indexes := c.bucket(tx, indexesBucket); indexes != nil {
			found = indexes.Get([]byte(field)) != nil
		}
		return nil
	})
	return found
}

// FindEqual resolves keys through the field's index when there is one and
// falls back to a full scan otherwise. Entries of every key hash are merged
// by sequence, so each document is decoded once and in insertion order.
func (c *Collection) FindEqual(ctx context.Context, field string, keys ...document.Value) ([]*document.Document, error) {
	if !c.HasIndex(field) {
		return store.ScanEqual(ctx, c, field, keys...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*document.Document
	err := c.store.db.View(func(tx *bolt.Tx) error {
		entries := c.bucket(tx, entriesBucket)
		docs := c.bucket(tx, docsBucket)
		if entries == nil || docs == nil {
			return nil
		}
		fb := entries.Bucket([]byte(field))
		if fb == nil {
			return nil
		}
		var seqs []uint64
		cur := fb.Cursor()
		for _, h := range store.Hashes(keys...) {
			prefix := seqKey(h)
			for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
				seqs = append(seqs, binary.BigEndian.Uint64(k[8:]))
			}
		}
		slices.Sort(seqs)
		for _, seq := range slices.Compact(seqs) {
			body := docs.Get(seqKey(seq))
			if body == nil {
				continue
			}
			d, err := store.Decode(body)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(c.name, err)
	}
	return store.MatchEqual(out, field, keys...), nil
}
