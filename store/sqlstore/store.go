package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/store"
	"github.com/kbukum/viewkit/stream"
)

// writeBatch bounds rows per INSERT statement to stay under sqlite's
// host parameter limit.
const writeBatch = 200

func init() {
	store.RegisterFactory(store.DriverSQLite, func(cfg store.Config, log *logger.Logger) (store.Backend, error) {
		return Open(cfg.DSN, cfg.PageSize, log)
	})
}

// Store is a sqlite-backed set of collections.
type Store struct {
	db          *gorm.DB
	dsn         string
	pageSize    int
	log         *logger.Logger
	mu          sync.Mutex
	collections map[string]*Collection
}

var _ store.Backend = (*Store)(nil)

// Open opens or creates the sqlite database at dsn and migrates its schema.
func Open(dsn string, pageSize int, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if pageSize <= 0 {
		pageSize = 256
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %w", err)
	}
	// sqlite has a single writer; one connection also keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&documentRow{}, &indexRow{}, &entryRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	log.Debug("sqlite store ready", logger.Fields("dsn", dsn))
	return &Store{db: db, dsn: dsn, pageSize: pageSize, log: log, collections: make(map[string]*Collection)}, nil
}

// Collection returns the named collection. Collections come into existence
// with their first document or index.
func (s *Store) Collection(name string) (collection.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{store: s, name: name}
		s.collections[name] = c
	}
	return c, nil
}

func (s *Store) Names(ctx context.Context) ([]string, error) {
	var docs, idx []string
	if err := s.db.WithContext(ctx).Model(&documentRow{}).Distinct("collection").Pluck("collection", &docs).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: list collections: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&indexRow{}).Distinct("collection").Pluck("collection", &idx).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: list collections: %w", err)
	}
	seen := make(map[string]bool, len(docs)+len(idx))
	var out []string
	for _, n := range append(docs, idx...) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{
		Name:    store.DriverSQLite,
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"dsn": s.dsn},
	}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
	}
	return h
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Collection is one named collection inside a Store.
type Collection struct {
	store *Store
	name  string
}

var (
	_ collection.Indexed  = (*Collection)(nil)
	_ collection.Writable = (*Collection)(nil)
)

func (c *Collection) Name() string { return c.name }

func (c *Collection) db(ctx context.Context) *gorm.DB { return c.store.db.WithContext(ctx) }

func (c *Collection) lastSeq(tx *gorm.DB) (int64, error) {
	var last int64
	err := tx.Model(&documentRow{}).Where("collection = ?", c.name).
		Select("COALESCE(MAX(seq), 0)").Scan(&last).Error
	return last, err
}

// Scan reads documents page by page, up to the last one present when the
// scan started.
func (c *Collection) Scan(ctx context.Context) (stream.Iterator[*document.Document], error) {
	upto, err := c.lastSeq(c.db(ctx))
	if err != nil {
		return nil, errors.Storage(c.name, err)
	}
	return store.Paged(c.page, upto, c.store.pageSize), nil
}

func (c *Collection) page(ctx context.Context, after, upto int64, limit int) ([]*document.Document, int64, error) {
	var rows []documentRow
	err := c.db(ctx).Where("collection = ? AND seq > ? AND seq <= ?", c.name, after, upto).
		Order("seq").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, after, errors.Storage(c.name, err)
	}
	docs, err := c.decode(rows)
	if err != nil {
		return nil, after, err
	}
	if len(rows) == 0 {
		return nil, after, nil
	}
	return docs, rows[len(rows)-1].Seq, nil
}

func (c *Collection) decode(rows []documentRow) ([]*document.Document, error) {
	docs := make([]*document.Document, len(rows))
	for i, r := range rows {
		d, err := store.Decode(r.Body)
		if err != nil {
			return nil, errors.Storage(c.name, fmt.Errorf("document %d: %w", r.Seq, err))
		}
		docs[i] = d
	}
	return docs, nil
}

func (c *Collection) indexedFields(tx *gorm.DB) ([]string, error) {
	var fields []string
	err := tx.Model(&indexRow{}).Where("collection = ?", c.name).Order("field").Pluck("field", &fields).Error
	return fields, err
}

// Insert appends docs in one transaction, maintaining every index.
func (c *Collection) Insert(ctx context.Context, docs ...*document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	err := c.db(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := c.lastSeq(tx)
		if err != nil {
			return err
		}
		fields, err := c.indexedFields(tx)
		if err != nil {
			return err
		}
		rows := make([]documentRow, len(docs))
		var entries []entryRow
		for i, d := range docs {
			body, err := store.Encode(d)
			if err != nil {
				return err
			}
			seq := last + int64(i) + 1
			rows[i] = documentRow{Collection: c.name, Seq: seq, Body: body}
			for _, f := range fields {
				entries = append(entries, c.entries(d, f, seq)...)
			}
		}
		if err := tx.CreateInBatches(rows, writeBatch).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			return tx.CreateInBatches(entries, writeBatch).Error
		}
		return nil
	})
	if err != nil {
		return errors.Storage(c.name, err)
	}
	return nil
}

func (c *Collection) entries(d *document.Document, field string, seq int64) []entryRow {
	hashes := store.KeyHashes(d, field)
	out := make([]entryRow, len(hashes))
	for i, h := range hashes {
		out[i] = entryRow{Collection: c.name, Field: field, KeyHash: int64(h), Seq: seq}
	}
	return out
}

// CreateIndex declares an index on field and fills it from the stored
// documents. Creating an existing index is a no-op.
func (c *Collection) CreateIndex(ctx context.Context, field string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	err := c.db(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&indexRow{}).Where("collection = ? AND field = ?", c.name, field).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&indexRow{Collection: c.name, Field: field}).Error; err != nil {
			return err
		}
		var after int64
		for {
			var rows []documentRow
			err := tx.Where("collection = ? AND seq > ?", c.name, after).
				Order("seq").Limit(c.store.pageSize).Find(&rows).Error
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			docs, err := c.decode(rows)
			if err != nil {
				return err
			}
			var entries []entryRow
			for i, d := range docs {
				entries = append(entries, c.entries(d, field, rows[i].Seq)...)
			}
			if len(entries) > 0 {
				if err := tx.CreateInBatches(entries, writeBatch).Error; err != nil {
					return err
				}
			}
			after = rows[len(rows)-1].Seq
		}
	})
	if err != nil {
		return errors.Storage(c.name, err)
	}
	return nil
}

func (c *Collection) HasIndex(field string) bool {
	var n int64
	err := c.store.db.Model(&indexRow{}).Where("collection = ? AND field = ?", c.name, field).Count(&n).Error
	return err == nil && n > 0
}

// FindEqual resolves keys through the field's index when there is one and
// falls back to a full scan otherwise. Entries of every key hash are merged
// by sequence, so each document is fetched once and in insertion order.
func (c *Collection) FindEqual(ctx context.Context, field string, keys ...document.Value) ([]*document.Document, error) {
	if !c.HasIndex(field) {
		return store.ScanEqual(ctx, c, field, keys...)
	}
	hashes := store.Hashes(keys...)
	keyHashes := make([]int64, len(hashes))
	for i, h := range hashes {
		keyHashes[i] = int64(h)
	}
	var seqs []int64
	err := c.db(ctx).Model(&entryRow{}).
		Where("collection = ? AND field = ? AND key_hash IN ?", c.name, field, keyHashes).
		Distinct("seq").Order("seq").Pluck("seq", &seqs).Error
	if err != nil {
		return nil, errors.Storage(c.name, err)
	}
	if len(seqs) == 0 {
		return nil, nil
	}
	var rows []documentRow
	for start := 0; start < len(seqs); start += writeBatch {
		chunk := seqs[start:min(start+writeBatch, len(seqs))]
		var part []documentRow
		if err := c.db(ctx).Where("collection = ? AND seq IN ?", c.name, chunk).Order("seq").Find(&part).Error; err != nil {
			return nil, errors.Storage(c.name, err)
		}
		rows = append(rows, part...)
	}
	docs, err := c.decode(rows)
	if err != nil {
		return nil, err
	}
	return store.MatchEqual(docs, field, keys...), nil
}
