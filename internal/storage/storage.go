package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hailam/chessnet/internal/arch"
	"github.com/hailam/chessnet/internal/graph"
)

// Network descriptions live under this key prefix.
const keyPrefix = "net/"

// Entry is one cataloged network.
type Entry struct {
	Key     string          `json:"key"`
	Input   arch.Input      `json:"input"`
	Config  arch.Config     `json:"config"`
	Nodes   int             `json:"nodes"`
	Params  int             `json:"params"`
	Graph   json.RawMessage `json:"graph"`
	Created time.Time       `json:"created"`
}

// Decode rebuilds the stored graph.
func (e *Entry) Decode() (*graph.Graph, error) {
	return graph.Decode(e.Graph)
}

// Fingerprint returns the catalog key for a network built from in and cfg.
func Fingerprint(in arch.Input, cfg arch.Config) (string, error) {
	data, err := json.Marshal(struct {
		Input  arch.Input  `json:"input"`
		Config arch.Config `json:"config"`
	}{in, cfg})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

type options struct {
	reg prometheus.Registerer
	log *zap.Logger
}

// Option configures a Catalog.
type Option func(*options)

// WithRegisterer registers the catalog counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithLogger sets the catalog logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Catalog wraps BadgerDB to keep built network descriptions.
type Catalog struct {
	db      *badger.DB
	metrics *metrics
	log     *zap.Logger
}

// Open opens or creates a catalog in dir.
func Open(dir string, opts ...Option) (*Catalog, error) {
	return open(badger.DefaultOptions(dir), opts)
}

// OpenInMemory opens a catalog that is discarded on Close.
func OpenInMemory(opts ...Option) (*Catalog, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts)
}

func open(bopts badger.Options, opts []Option) (*Catalog, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	bopts.Logger = nil // badger is chatty at info level

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Catalog{db: db, metrics: newMetrics(o.reg), log: o.log}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Put stores the description of net and returns the written entry. An entry
// with the same key is replaced.
func (c *Catalog) Put(net *arch.Network) (*Entry, error) {
	key, err := Fingerprint(net.Input, net.Config)
	if err != nil {
		return nil, err
	}
	desc, err := net.Graph.MarshalJSON()
	if err != nil {
		return nil, err
	}
	_, params := net.Graph.Summary()
	e := &Entry{
		Key:     key,
		Input:   net.Input,
		Config:  net.Config,
		Nodes:   net.Graph.Len(),
		Params:  params,
		Graph:   desc,
		Created: time.Now().UTC(),
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	})
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	c.metrics.writes.Inc()
	c.log.Debug("catalog write", zap.String("key", key), zap.Int("nodes", e.Nodes))
	return e, nil
}

// Get loads the entry stored under key. A missing key yields ErrNotFound.
func (c *Catalog) Get(key string) (*Entry, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		c.metrics.misses.Inc()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	c.metrics.hits.Inc()
	return &e, nil
}

// List returns every entry ordered by key.
func (c *Catalog) List() ([]*Entry, error) {
	var out []*Entry
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   16,
			Prefix:         []byte(keyPrefix),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			e := new(Entry)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return out, nil
}

// Resolve returns the cataloged entry for in and cfg, building and storing
// the network on a miss. The boolean reports whether the entry was cached.
func (c *Catalog) Resolve(in arch.Input, cfg arch.Config, opts ...arch.Option) (*Entry, bool, error) {
	key, err := Fingerprint(in, cfg)
	if err != nil {
		return nil, false, err
	}
	e, err := c.Get(key)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	net, err := arch.Build(in, cfg, opts...)
	if err != nil {
		return nil, false, err
	}
	e, err = c.Put(net)
	if err != nil {
		return nil, false, err
	}
	return e, false, nil
}
