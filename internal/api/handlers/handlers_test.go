package handlers

import (
	"context"
	"time"

	"github.com/medisync/go-pharma/internal/domain/catalog"
	"github.com/medisync/go-pharma/internal/domain/prescription"
	"github.com/medisync/go-pharma/internal/observability/metrics"
)

// testMetrics is shared: the collectors register against the default
// prometheus registry, which tolerates only one registration per process.
var testMetrics = metrics.New()

type memStore struct {
	snapshot *catalog.Snapshot
}

func (s *memStore) Latest(ctx context.Context) (*catalog.Snapshot, error) {
	if s.snapshot == nil {
		return nil, catalog.ErrNoSnapshot
	}
	return s.snapshot, nil
}

func (s *memStore) Replace(ctx context.Context, snap *catalog.Snapshot) (*catalog.ReplaceReport, error) {
	deleted := 0
	if s.snapshot != nil {
		deleted = 1
	}
	s.snapshot = snap
	return &catalog.ReplaceReport{Deleted: deleted}, nil
}

type memCache struct {
	bools map[string]bool
	names map[string][]string
}

func newMemCache() *memCache {
	return &memCache{bools: make(map[string]bool), names: make(map[string][]string)}
}

func (c *memCache) GetBool(ctx context.Context, key string) (bool, bool, error) {
	value, ok := c.bools[key]
	return value, ok, nil
}

func (c *memCache) SetBool(ctx context.Context, key string, value bool, ttl time.Duration) error {
	c.bools[key] = value
	return nil
}

func (c *memCache) GetNames(ctx context.Context, key string) ([]string, bool, error) {
	names, ok := c.names[key]
	return names, ok, nil
}

func (c *memCache) SetNames(ctx context.Context, key string, names []string, ttl time.Duration) error {
	c.names[key] = names
	return nil
}

func (c *memCache) Flush(ctx context.Context) error {
	c.bools = make(map[string]bool)
	c.names = make(map[string][]string)
	return nil
}

type memGroupStore struct {
	groups map[int64][]prescription.LineItem
}

func newMemGroupStore() *memGroupStore {
	return &memGroupStore{groups: make(map[int64][]prescription.LineItem)}
}

func (s *memGroupStore) CreateGroup(ctx context.Context, groupID int64, items []prescription.LineItem) error {
	if _, ok := s.groups[groupID]; ok {
		return prescription.ErrDuplicateGroup
	}
	s.groups[groupID] = items
	return nil
}

func (s *memGroupStore) ItemsByGroup(ctx context.Context, groupID int64) ([]prescription.LineItem, error) {
	items, ok := s.groups[groupID]
	if !ok {
		return nil, prescription.ErrNotFound
	}
	return items, nil
}

type memPublisher struct {
	published [][]byte
}

func (p *memPublisher) Publish(ctx context.Context, key string, value []byte) error {
	p.published = append(p.published, value)
	return nil
}

type staticCatalog struct {
	existing map[string]bool
	err      error
}

func (c *staticCatalog) ExistsBatch(ctx context.Context, names []string) (*prescription.CatalogBatch, error) {
	if c.err != nil {
		return nil, c.err
	}
	batch := &prescription.CatalogBatch{}
	for _, name := range names {
		if c.existing[name] {
			batch.Existing = append(batch.Existing, name)
		} else {
			batch.NonExisting = append(batch.NonExisting, name)
		}
	}
	return batch, nil
}

type staticFetcher struct {
	medicines map[string]int
	err       error
}

func (f *staticFetcher) FetchLatest(ctx context.Context) (map[string]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.medicines, nil
}
