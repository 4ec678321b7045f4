// Package cache keeps completed translations in a bounded, process-wide LRU.
//
// Eviction is least-recently-used: Lookup hits and Insert both mark a key as
// most recent, and an Insert into a full cache evicts exactly the least
// recently used entry. Writes to the persister happen on a background
// goroutine so Insert never waits on storage. All methods are safe for
// concurrent use.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

const persistTimeout = 2 * time.Second

// Cache implements ports.TranslationCache.
type Cache struct {
	entries   *lru.Cache[domain.TranslationKey, domain.CacheEntry]
	persister ports.CachePersister
	capacity  int
	log       zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []domain.CacheEntry
	closed  bool

	// writeMu keeps Clear from interleaving with a batch of writes.
	writeMu   sync.Mutex
	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a cache holding at most capacity entries. persister may be nil.
func New(capacity int, persister ports.CachePersister, log zerolog.Logger) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	entries, err := lru.New[domain.TranslationKey, domain.CacheEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c := &Cache{
		entries:   entries,
		persister: persister,
		capacity:  capacity,
		log:       log.With().Str("component", "cache").Logger(),
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if persister == nil {
		close(c.done)
	} else {
		go c.persistLoop()
	}
	return c, nil
}

// Lookup returns the cached translation for key.
func (c *Cache) Lookup(key domain.TranslationKey) (string, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		c.log.Debug().Str("target_language", key.TargetLanguage).Int("source_length", len(key.SourceText)).Msg("cache miss")
		return "", false
	}
	c.log.Debug().Str("target_language", key.TargetLanguage).Int("source_length", len(key.SourceText)).Msg("cache hit")
	return entry.Result, true
}

// Insert stores result under key, replacing any previous value. The entry is
// queued for the persister; persistence failures are logged and otherwise
// ignored.
func (c *Cache) Insert(key domain.TranslationKey, result string) {
	entry := domain.CacheEntry{Key: key, Result: result, CreatedAt: c.now().UTC()}
	if evicted := c.entries.Add(key, entry); evicted {
		c.log.Debug().Int("capacity", c.capacity).Msg("evicted least recently used entry")
	}

	if c.persister == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Debug().Msg("cache closed, entry kept in memory only")
		return
	}
	c.pending = append(c.pending, entry)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Flush writes every queued entry before returning.
func (c *Cache) Flush() {
	if c.persister == nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, entry := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := c.persister.PutCache(ctx, entry)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to persist cache entry")
		}
	}
}

// Close flushes queued entries and stops the background writer. Later
// inserts stay in memory.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.stop)
	})
	<-c.done
}

func (c *Cache) persistLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.wake:
			c.Flush()
		case <-c.stop:
			c.Flush()
			return
		}
	}
}

// Warm loads the most recent persisted entries, oldest first, so that recency
// order survives a restart.
func (c *Cache) Warm(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}
	entries, err := c.persister.LoadCache(ctx, c.capacity)
	if err != nil {
		return fmt.Errorf("load persisted cache: %w", err)
	}
	for _, entry := range entries {
		c.entries.Add(entry.Key, entry)
	}
	c.log.Info().Int("entries", len(entries)).Msg("cache warmed")
	return nil
}

// Clear drops every entry from memory, from the write queue and from the
// persister.
func (c *Cache) Clear(ctx context.Context) error {
	c.entries.Purge()
	c.log.Info().Msg("cache cleared")
	if c.persister == nil {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	if err := c.persister.ClearCache(ctx); err != nil {
		return fmt.Errorf("clear persisted cache: %w", err)
	}
	return nil
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	return c.entries.Len()
}
