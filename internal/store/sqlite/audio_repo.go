package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"aitranslate/internal/domain"
)

// AudioRepo persists the synthesized audio index. It implements ports.AudioIndex.
type AudioRepo struct{ *Repo }

func NewAudioRepo(db *sql.DB) *AudioRepo { return &AudioRepo{NewRepo(db)} }

// LoadAudio returns the newest limit entries, oldest first.
func (r *AudioRepo) LoadAudio(ctx context.Context, limit int) ([]domain.AudioEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	newest := r.SQ.Select("cache_key", "path", "created_at").
		From("audio_cache").
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	q := r.SQ.Select("cache_key", "path", "created_at").
		FromSelect(newest, "newest").
		OrderBy("created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audio query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("load audio index: %w", err)
	}
	defer rows.Close()

	var entries []domain.AudioEntry
	for rows.Next() {
		var e domain.AudioEntry
		var created string
		if err := rows.Scan(&e.Key, &e.Path, &created); err != nil {
			return nil, fmt.Errorf("scan audio entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *AudioRepo) PutAudio(ctx context.Context, entry domain.AudioEntry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	q := r.SQ.
		Insert("audio_cache").
		Columns("cache_key", "path", "created_at").
		Values(entry.Key, entry.Path, created.UTC().Format(timeLayout)).
		Suffix("ON CONFLICT(cache_key) DO UPDATE SET path=excluded.path, created_at=excluded.created_at")
	sqlStr, args, _ := q.ToSql()
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("put audio entry: %w", err)
	}
	return nil
}

func (r *AudioRepo) DeleteAudio(ctx context.Context, key string) error {
	sqlStr, args, _ := r.SQ.Delete("audio_cache").Where(sq.Eq{"cache_key": key}).ToSql()
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete audio entry: %w", err)
	}
	return nil
}

func (r *AudioRepo) ClearAudio(ctx context.Context) error {
	sqlStr, args, _ := r.SQ.Delete("audio_cache").ToSql()
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("clear audio index: %w", err)
	}
	return nil
}
