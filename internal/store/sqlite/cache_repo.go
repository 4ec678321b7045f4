package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aitranslate/internal/domain"
)

// CacheRepo persists translation cache entries. It implements ports.CachePersister.
type CacheRepo struct{ *Repo }

func NewCacheRepo(db *sql.DB) *CacheRepo { return &CacheRepo{NewRepo(db)} }

// LoadCache returns the newest limit entries, oldest first.
func (r *CacheRepo) LoadCache(ctx context.Context, limit int) ([]domain.CacheEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	newest := r.SQ.Select("source_text", "target_language", "result", "created_at").
		From("translation_cache").
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	q := r.SQ.Select("source_text", "target_language", "result", "created_at").
		FromSelect(newest, "newest").
		OrderBy("created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cache query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	defer rows.Close()

	var entries []domain.CacheEntry
	for rows.Next() {
		var e domain.CacheEntry
		var created string
		if err := rows.Scan(&e.Key.SourceText, &e.Key.TargetLanguage, &e.Result, &created); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *CacheRepo) PutCache(ctx context.Context, entry domain.CacheEntry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	q := r.SQ.
		Insert("translation_cache").
		Columns("source_text", "target_language", "result", "created_at").
		Values(entry.Key.SourceText, entry.Key.TargetLanguage, entry.Result, created.UTC().Format(timeLayout)).
		Suffix("ON CONFLICT(source_text, target_language) DO UPDATE SET result=excluded.result, created_at=excluded.created_at")
	sqlStr, args, _ := q.ToSql()
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepo) ClearCache(ctx context.Context) error {
	sqlStr, args, _ := r.SQ.Delete("translation_cache").ToSql()
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
