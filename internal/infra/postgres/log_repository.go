package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/genlog"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/platform/database"
)

// LogRepository は生成ログのPostgreSQL実装
type LogRepository struct {
	db *database.DB
}

// NewLogRepository は新しいログリポジトリを作成する
func NewLogRepository(db *database.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Append は新しいログエントリを追記する
func (r *LogRepository) Append(ctx context.Context, entry genlog.Entry) error {
	id := entry.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO generation_log
			(id, entity_id, entity_kind, prompt, response, meta_title, meta_description, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, entry.EntityID, string(entry.EntityKind),
		entry.Prompt, entry.Response, entry.MetaTitle, entry.MetaDescription,
		strings.Join(entry.Tags, ","))
	if err != nil {
		return fmt.Errorf("failed to append generation log: %w", err)
	}
	return nil
}

// ListByEntity はエンティティのログを新しい順に最大 limit 件返す
func (r *LogRepository) ListByEntity(ctx context.Context, id int64, kind status.EntityKind, limit int) ([]genlog.Entry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, entity_id, entity_kind, created_at, prompt, response, meta_title, meta_description, tags
		FROM generation_log
		WHERE entity_id = $1 AND entity_kind = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, id, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation log: %w", err)
	}
	defer rows.Close()

	var entries []genlog.Entry
	for rows.Next() {
		var entry genlog.Entry
		var kindValue, tags string
		if err := rows.Scan(
			&entry.ID, &entry.EntityID, &kindValue, &entry.CreatedAt,
			&entry.Prompt, &entry.Response, &entry.MetaTitle, &entry.MetaDescription, &tags,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation log: %w", err)
		}
		entry.EntityKind = status.EntityKind(kindValue)
		if tags != "" {
			entry.Tags = strings.Split(tags, ",")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// インターフェース実装の確認
var _ genlog.Repository = (*LogRepository)(nil)
