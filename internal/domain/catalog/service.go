package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoSnapshot indicates the store holds no catalog snapshot yet.
var ErrNoSnapshot = errors.New("no catalog snapshot")

// Lookup sources reported to callers.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// DefaultCacheTTL is the expiration for cached lookup answers.
const DefaultCacheTTL = time.Hour

// Store persists catalog snapshots.
type Store interface {
	// Latest returns the current snapshot, or ErrNoSnapshot.
	Latest(ctx context.Context) (*Snapshot, error)
	// Replace installs a new snapshot and removes superseded ones.
	// Individual deletions of old snapshots may fail without failing the
	// replace; the report carries the aggregate outcome.
	Replace(ctx context.Context, snap *Snapshot) (*ReplaceReport, error)
}

// ReplaceReport describes the outcome of a snapshot replacement.
type ReplaceReport struct {
	Deleted        int
	DeleteFailures int
}

// Cache is a TTL key/value store for lookup answers. All methods may fail
// when the backend is unreachable; callers degrade to the store path.
type Cache interface {
	GetBool(ctx context.Context, key string) (value, found bool, err error)
	SetBool(ctx context.Context, key string, value bool, ttl time.Duration) error
	GetNames(ctx context.Context, key string) (names []string, found bool, err error)
	SetNames(ctx context.Context, key string, names []string, ttl time.Duration) error
	Flush(ctx context.Context) error
}

// ExistsResult is the answer to a single existence lookup.
type ExistsResult struct {
	Name       string
	Exists     bool
	Source     string
	CacheError string
}

// BatchResult is the answer to a batch existence lookup. Name order follows
// the (deduplicated) request order.
type BatchResult struct {
	Existing      []string
	NonExisting   []string
	CacheHits     []string
	DatabaseHits  []string
	TotalSearched int
}

// SimilarResult is the answer to a similarity search.
type SimilarResult struct {
	Names      []string
	Source     string
	CacheError string
}

// RefreshResult describes a catalog refresh. A refresh that stored the new
// snapshot but could not clear the cache is degraded, not failed.
type RefreshResult struct {
	Count          int
	Saved          bool
	CacheCleared   bool
	Deleted        int
	DeleteFailures int
}

// Service answers existence and similarity queries through a read-through
// cache, and performs snapshot refreshes.
type Service struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates a lookup service.
func NewService(store Store, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		cache:  cache,
		ttl:    DefaultCacheTTL,
		logger: logger,
	}
}

// Exists checks a single medicine name. Cache failures never mask the catalog
// answer; they are reported via CacheError on a successful result.
func (s *Service) Exists(ctx context.Context, name string) (*ExistsResult, error) {
	res := &ExistsResult{Name: name}

	cached, found, err := s.cache.GetBool(ctx, name)
	if err != nil {
		res.CacheError = err.Error()
		s.logger.Warn("cache read failed", zap.String("name", name), zap.Error(err))
	} else if found {
		res.Exists = cached
		res.Source = SourceCache
		return res, nil
	}

	snap, err := s.latestOrEmpty(ctx)
	if err != nil {
		return nil, err
	}

	res.Exists = snap.Contains(name)
	res.Source = SourceDatabase

	if err := s.cache.SetBool(ctx, name, res.Exists, s.ttl); err != nil {
		res.CacheError = err.Error()
		s.logger.Warn("cache write failed", zap.String("name", name), zap.Error(err))
	}
	return res, nil
}

// ExistsBatch checks a set of names, preferring the cache per name and
// resolving the remainder with a single snapshot read. The store is never
// queried once per name.
func (s *Service) ExistsBatch(ctx context.Context, names []string) (*BatchResult, error) {
	res := &BatchResult{
		Existing:     []string{},
		NonExisting:  []string{},
		CacheHits:    []string{},
		DatabaseHits: []string{},
	}

	seen := make(map[string]bool, len(names))
	var remainder []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		res.TotalSearched++

		cached, found, err := s.cache.GetBool(ctx, name)
		if err != nil {
			s.logger.Warn("cache read failed", zap.String("name", name), zap.Error(err))
			remainder = append(remainder, name)
			continue
		}
		if !found {
			remainder = append(remainder, name)
			continue
		}

		res.CacheHits = append(res.CacheHits, name)
		if cached {
			res.Existing = append(res.Existing, name)
		} else {
			res.NonExisting = append(res.NonExisting, name)
		}
	}

	if len(remainder) == 0 {
		return res, nil
	}

	snap, err := s.latestOrEmpty(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range remainder {
		exists := snap.Contains(name)
		res.DatabaseHits = append(res.DatabaseHits, name)
		if exists {
			res.Existing = append(res.Existing, name)
		} else {
			res.NonExisting = append(res.NonExisting, name)
		}

		if err := s.cache.SetBool(ctx, name, exists, s.ttl); err != nil {
			s.logger.Warn("cache write failed", zap.String("name", name), zap.Error(err))
		}
	}
	return res, nil
}

// Similar performs a case-insensitive substring search over all catalog names,
// cached by the uppercased search term.
func (s *Service) Similar(ctx context.Context, term string, limit int) (*SimilarResult, error) {
	res := &SimilarResult{}
	key := similarKey(term)

	cached, found, err := s.cache.GetNames(ctx, key)
	if err != nil {
		res.CacheError = err.Error()
		s.logger.Warn("cache read failed", zap.String("term", term), zap.Error(err))
	} else if found {
		res.Names = cached
		res.Source = SourceCache
		return res, nil
	}

	snap, err := s.latestOrEmpty(ctx)
	if err != nil {
		return nil, err
	}

	res.Names = RankSimilar(snap.Names(), term, limit)
	res.Source = SourceDatabase

	if err := s.cache.SetNames(ctx, key, res.Names, s.ttl); err != nil {
		res.CacheError = err.Error()
		s.logger.Warn("cache write failed", zap.String("term", term), zap.Error(err))
	}
	return res, nil
}

// Refresh atomically replaces the catalog snapshot and invalidates all cached
// answers. A cache flush failure degrades the outcome without failing it.
func (s *Service) Refresh(ctx context.Context, medicines map[string]int) *RefreshResult {
	res := &RefreshResult{Count: len(medicines)}

	snap := NewSnapshot(uuid.NewString(), medicines)
	report, err := s.store.Replace(ctx, snap)
	if err != nil {
		s.logger.Error("snapshot replace failed", zap.Error(err))
	} else {
		res.Saved = true
		res.Deleted = report.Deleted
		res.DeleteFailures = report.DeleteFailures
	}

	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Error("cache flush failed", zap.Error(err))
	} else {
		res.CacheCleared = true
	}

	s.logger.Info("catalog refreshed",
		zap.Int("count", res.Count),
		zap.Bool("saved", res.Saved),
		zap.Bool("cache_cleared", res.CacheCleared),
		zap.Int("old_snapshots_deleted", res.Deleted),
		zap.Int("delete_failures", res.DeleteFailures),
	)
	return res
}

// latestOrEmpty treats a missing snapshot as an empty catalog.
func (s *Service) latestOrEmpty(ctx context.Context) (*Snapshot, error) {
	snap, err := s.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return &Snapshot{Medicines: map[string]int{}}, nil
		}
		return nil, err
	}
	return snap, nil
}

// similarKey normalizes the search term so "aspirin" and "ASPIRIN" share a
// cache entry.
func similarKey(term string) string {
	return "similar:" + strings.ToUpper(strings.TrimSpace(term))
}
