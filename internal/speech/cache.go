package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"aitranslate/internal/domain"
	"aitranslate/internal/ports"
)

const indexTimeout = 2 * time.Second

// AudioCache maps spoken text to synthesized files. Evicted entries lose
// their file. index may be nil.
type AudioCache struct {
	entries  *lru.Cache[string, domain.AudioEntry]
	index    ports.AudioIndex
	capacity int
	log      zerolog.Logger
	now      func() time.Time
}

func NewAudioCache(capacity int, index ports.AudioIndex, log zerolog.Logger) (*AudioCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("audio cache capacity must be positive, got %d", capacity)
	}
	c := &AudioCache{
		index:    index,
		capacity: capacity,
		log:      log.With().Str("component", "audio_cache").Logger(),
		now:      time.Now,
	}
	entries, err := lru.NewWithEvict[string, domain.AudioEntry](capacity, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Key identifies the audio for text spoken with req's voice settings.
func Key(text string, req ports.SpeechRequest) string {
	sum := sha256.Sum256([]byte(req.Voice + "|" +
		strconv.FormatFloat(req.Speed, 'f', 2, 64) + "|" +
		strconv.FormatFloat(req.Volume, 'f', 2, 64) + "|" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached file for key. An entry whose file has disappeared is
// dropped.
func (c *AudioCache) Get(key string) (domain.AudioEntry, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return domain.AudioEntry{}, false
	}
	if _, err := os.Stat(entry.Path); err != nil {
		c.log.Warn().Str("path", entry.Path).Msg("cached audio file missing")
		c.entries.Remove(key)
		return domain.AudioEntry{}, false
	}
	return entry, true
}

// Put records path as the audio for key, replacing and deleting any older file.
func (c *AudioCache) Put(key, path string) {
	if old, ok := c.entries.Peek(key); ok && old.Path != path {
		removeFile(old.Path, c.log)
	}
	entry := domain.AudioEntry{Key: key, Path: path, CreatedAt: c.now().UTC()}
	c.entries.Add(key, entry)

	if c.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	if err := c.index.PutAudio(ctx, entry); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist audio entry")
	}
}

// Warm loads persisted entries whose files still exist.
func (c *AudioCache) Warm(ctx context.Context) error {
	if c.index == nil {
		return nil
	}
	entries, err := c.index.LoadAudio(ctx, c.capacity)
	if err != nil {
		return fmt.Errorf("load audio index: %w", err)
	}
	loaded := 0
	for _, entry := range entries {
		if _, err := os.Stat(entry.Path); err != nil {
			if err := c.index.DeleteAudio(ctx, entry.Key); err != nil {
				c.log.Warn().Err(err).Msg("failed to drop stale audio entry")
			}
			continue
		}
		c.entries.Add(entry.Key, entry)
		loaded++
	}
	c.log.Info().Int("entries", loaded).Msg("audio cache warmed")
	return nil
}

// Clear deletes every cached file and the persisted index.
func (c *AudioCache) Clear(ctx context.Context) error {
	c.entries.Purge()
	if c.index == nil {
		return nil
	}
	if err := c.index.ClearAudio(ctx); err != nil {
		return fmt.Errorf("clear audio index: %w", err)
	}
	return nil
}

func (c *AudioCache) Len() int {
	return c.entries.Len()
}

func (c *AudioCache) evicted(key string, entry domain.AudioEntry) {
	removeFile(entry.Path, c.log)
	if c.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	if err := c.index.DeleteAudio(ctx, key); err != nil {
		c.log.Warn().Err(err).Msg("failed to drop evicted audio entry")
	}
}

func removeFile(path string, log zerolog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove audio file")
	}
}
