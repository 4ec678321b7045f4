package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"aitranslate/internal/domain"
)

// TranscriptRepo stores completed translations for the history view.
type TranscriptRepo struct{ *Repo }

func NewTranscriptRepo(db *sql.DB) *TranscriptRepo { return &TranscriptRepo{NewRepo(db)} }

func (r *TranscriptRepo) Record(ctx context.Context, t domain.Transcript) error {
	completed := t.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	q := r.SQ.
		Insert("transcripts").
		Columns("source_text", "source_language", "target_language", "result", "completed_at").
		Values(t.SourceText, t.SourceLanguage, t.TargetLanguage, t.Result, completed.UTC().Format(timeLayout))
	sqlStr, args, _ := q.ToSql()
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// Recent returns up to limit transcripts, newest first. A target language
// filter of "" matches every language.
func (r *TranscriptRepo) Recent(ctx context.Context, limit int) ([]domain.Transcript, error) {
	return r.recent(ctx, limit, "")
}

func (r *TranscriptRepo) RecentForLanguage(ctx context.Context, limit int, targetLanguage string) ([]domain.Transcript, error) {
	return r.recent(ctx, limit, targetLanguage)
}

func (r *TranscriptRepo) recent(ctx context.Context, limit int, targetLanguage string) ([]domain.Transcript, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := r.SQ.Select("source_text", "source_language", "target_language", "result", "completed_at").
		From("transcripts").
		OrderBy("completed_at DESC", "id DESC").
		Limit(uint64(limit))
	if targetLanguage != "" {
		q = q.Where(sq.Eq{"target_language": targetLanguage})
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transcript query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var out []domain.Transcript
	for rows.Next() {
		var t domain.Transcript
		var completed string
		if err := rows.Scan(&t.SourceText, &t.SourceLanguage, &t.TargetLanguage, &t.Result, &completed); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		t.CompletedAt, _ = time.Parse(timeLayout, completed)
		out = append(out, t)
	}
	return out, rows.Err()
}
