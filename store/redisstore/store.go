package redisstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/resilience"
	"github.com/kbukum/viewkit/store"
	"github.com/kbukum/viewkit/stream"
)

// txPolicy retries optimistic transactions whose watched keys changed
// underneath a write.
var txPolicy = resilience.Policy{
	Attempts: 8,
	Initial:  time.Millisecond,
	Max:      50 * time.Millisecond,
	Factor:   2,
	Jitter:   0.2,
	RetryIf:  func(err error) bool { return stderrors.Is(err, goredis.TxFailedErr) },
}

func init() {
	store.RegisterFactory(store.DriverRedis, func(cfg store.Config, log *logger.Logger) (store.Backend, error) {
		return New(cfg, log)
	})
}

// Store is a redis-backed set of collections.
type Store struct {
	rdb         goredis.UniversalClient
	prefix      string
	pageSize    int
	log         *logger.Logger
	ownsClient  bool
	mu          sync.Mutex
	collections map[string]*Collection
}

var _ store.Backend = (*Store)(nil)

// New connects to the redis server named by cfg.
func New(cfg store.Config, log *logger.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := NewWithClient(rdb, cfg.KeyPrefix, cfg.PageSize, log)
	s.ownsClient = true
	s.log.Info("redis store created", logger.Fields("addr", cfg.Addr, "db", cfg.DB))
	return s, nil
}

// NewWithClient uses an existing client. Close leaves the client open.
func NewWithClient(rdb goredis.UniversalClient, prefix string, pageSize int, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	if pageSize <= 0 {
		pageSize = 256
	}
	if prefix == "" {
		prefix = "viewkit"
	}
	return &Store{
		rdb:         rdb,
		prefix:      prefix,
		pageSize:    pageSize,
		log:         log,
		collections: make(map[string]*Collection),
	}
}

func (s *Store) namesKey() string { return s.prefix + ":collections" }

// Collection returns the named collection.
func (s *Store) Collection(name string) (collection.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		base := s.prefix + ":c:" + name
		c = &Collection{
			store:      s,
			name:       name,
			docsKey:    base + ":docs",
			indexesKey: base + ":indexes",
			entryBase:  base + ":ix:",
		}
		s.collections[name] = c
	}
	return c, nil
}

func (s *Store) Names(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: store.DriverRedis, Status: observability.HealthStatusUp}
	pong, err := s.rdb.Ping(ctx).Result()
	switch {
	case err != nil:
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
	case pong != "PONG":
		h.Status = observability.HealthStatusDegraded
		h.Message = "unexpected ping response: " + pong
	}
	return h
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.rdb.Close()
}

// Collection is one named collection inside a Store.
type Collection struct {
	store      *Store
	name       string
	docsKey    string
	indexesKey string
	entryBase  string
}

var (
	_ collection.Indexed  = (*Collection)(nil)
	_ collection.Writable = (*Collection)(nil)
)

func (c *Collection) Name() string { return c.name }

func (c *Collection) entryKey(field string, hash uint64) string {
	return c.entryBase + field + ":" + strconv.FormatUint(hash, 16)
}

// Scan pages through the document list up to its length when the scan started.
func (c *Collection) Scan(ctx context.Context) (stream.Iterator[*document.Document], error) {
	n, err := c.store.rdb.LLen(ctx, c.docsKey).Result()
	if err != nil {
		return nil, errors.Storage(c.name, err)
	}
	return store.Paged(c.page, n, c.store.pageSize), nil
}

func (c *Collection) page(ctx context.Context, after, upto int64, limit int) ([]*document.Document, int64, error) {
	stop := min(after+int64(limit), upto)
	bodies, err := c.store.rdb.LRange(ctx, c.docsKey, after, stop-1).Result()
	if err != nil {
		return nil, after, errors.Storage(c.name, err)
	}
	docs, err := c.decode(bodies)
	if err != nil {
		return nil, after, err
	}
	return docs, after + int64(len(docs)), nil
}

func (c *Collection) decode(bodies []string) ([]*document.Document, error) {
	docs := make([]*document.Document, len(bodies))
	for i, b := range bodies {
		d, err := store.Decode([]byte(b))
		if err != nil {
			return nil, errors.Storage(c.name, err)
		}
		docs[i] = d
	}
	return docs, nil
}

// watch runs fn in an optimistic transaction over the collection's keys,
// retrying when a concurrent writer got there first.
func (c *Collection) watch(ctx context.Context, fn func(tx *goredis.Tx) error) error {
	p := txPolicy
	p.OnRetry = func(attempt int, _ error, _ time.Duration) {
		c.store.log.Debug("redis transaction conflict, retrying", logger.Fields(logger.FieldCollection, c.name, "attempt", attempt))
	}
	err := resilience.Do(ctx, p, func(ctx context.Context) error {
		return c.store.rdb.Watch(ctx, fn, c.docsKey, c.indexesKey)
	})
	if err != nil {
		return errors.Storage(c.name, err)
	}
	return nil
}

// Insert appends docs and their index entries atomically.
func (c *Collection) Insert(ctx context.Context, docs ...*document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	bodies := make([]interface{}, len(docs))
	for i, d := range docs {
		b, err := store.Encode(d)
		if err != nil {
			return errors.Storage(c.name, err)
		}
		bodies[i] = b
	}
	return c.watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.LLen(ctx, c.docsKey).Result()
		if err != nil {
			return err
		}
		fields, err := tx.SMembers(ctx, c.indexesKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.RPush(ctx, c.docsKey, bodies...)
			p.SAdd(ctx, c.store.namesKey(), c.name)
			for i, d := range docs {
				pos := n + int64(i) + 1
				for _, f := range fields {
					c.addEntries(ctx, p, d, f, pos)
				}
			}
			return nil
		})
		return err
	})
}

func (c *Collection) addEntries(ctx context.Context, p goredis.Pipeliner, d *document.Document, field string, pos int64) {
	member := goredis.Z{Score: float64(pos), Member: strconv.FormatInt(pos, 10)}
	for _, h := range store.KeyHashes(d, field) {
		p.ZAdd(ctx, c.entryKey(field, h), member)
	}
}

// CreateIndex declares an index on field and fills it from the stored
// documents. Creating an existing index is a no-op.
func (c *Collection) CreateIndex(ctx context.Context, field string) error {
	return c.watch(ctx, func(tx *goredis.Tx) error {
		exists, err := tx.SIsMember(ctx, c.indexesKey, field).Result()
		if err != nil || exists {
			return err
		}
		n, err := tx.LLen(ctx, c.docsKey).Result()
		if err != nil {
			return err
		}
		var docs []*document.Document
		for start := int64(0); start < n; start += int64(c.store.pageSize) {
			bodies, err := tx.LRange(ctx, c.docsKey, start, min(start+int64(c.store.pageSize), n)-1).Result()
			if err != nil {
				return err
			}
			page, err := c.decode(bodies)
			if err != nil {
				return err
			}
			docs = append(docs, page...)
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.SAdd(ctx, c.indexesKey, field)
			p.SAdd(ctx, c.store.namesKey(), c.name)
			for i, d := range docs {
				c.addEntries(ctx, p, d, field, int64(i)+1)
			}
			return nil
		})
		return err
	})
}

func (c *Collection) HasIndex(field string) bool {
	ok, err := c.store.rdb.SIsMember(context.Background(), c.indexesKey, field).Result()
	return err == nil && ok
}

// FindEqual resolves keys through the field's index when there is one and
// falls back to a full scan otherwise. Positions of every key hash are
// merged, so each document is fetched once and in list order.
func (c *Collection) FindEqual(ctx context.Context, field string, keys ...document.Value) ([]*document.Document, error) {
	if !c.HasIndex(field) {
		return store.ScanEqual(ctx, c, field, keys...)
	}
	hashes := store.Hashes(keys...)
	ranges, err := c.store.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, h := range hashes {
			p.ZRange(ctx, c.entryKey(field, h), 0, -1)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(c.name, err)
	}
	var positions []int64
	for _, cmd := range ranges {
		for _, m := range cmd.(*goredis.StringSliceCmd).Val() {
			pos, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				return nil, errors.Storage(c.name, fmt.Errorf("bad index entry %q: %w", m, err))
			}
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		return nil, nil
	}
	slices.Sort(positions)
	positions = slices.Compact(positions)
	cmds, err := c.store.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, pos := range positions {
			p.LIndex(ctx, c.docsKey, pos-1)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(c.name, err)
	}
	bodies := make([]string, len(cmds))
	for i, cmd := range cmds {
		bodies[i] = cmd.(*goredis.StringCmd).Val()
	}
	docs, err := c.decode(bodies)
	if err != nil {
		return nil, err
	}
	return store.MatchEqual(docs, field, keys...), nil
}
