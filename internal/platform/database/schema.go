package database

import (
	"context"
	"fmt"
)

// schemaStatements はアプリケーションが必要とするテーブル定義
// 初回接続時に冪等に適用される
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS app_config (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS entity_status (
		entity_id    BIGINT      NOT NULL,
		entity_kind  TEXT        NOT NULL CHECK (entity_kind IN ('post', 'product')),
		status       TEXT        NOT NULL DEFAULT '',
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_error   TEXT        NOT NULL DEFAULT '',
		title_done   BOOLEAN     NOT NULL DEFAULT FALSE,
		desc_done    BOOLEAN     NOT NULL DEFAULT FALSE,
		seo_done     BOOLEAN     NOT NULL DEFAULT FALSE,
		slug_done    BOOLEAN     NOT NULL DEFAULT FALSE,
		title_error  TEXT        NOT NULL DEFAULT '',
		desc_error   TEXT        NOT NULL DEFAULT '',
		seo_error    TEXT        NOT NULL DEFAULT '',
		slug_error   TEXT        NOT NULL DEFAULT '',
		last_title      TEXT NOT NULL DEFAULT '',
		last_slug       TEXT NOT NULL DEFAULT '',
		last_meta_title TEXT NOT NULL DEFAULT '',
		last_meta_desc  TEXT NOT NULL DEFAULT '',
		last_focus_kw   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (entity_id, entity_kind)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_status_updated
		ON entity_status (entity_kind, status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS generation_log (
		id          UUID        PRIMARY KEY,
		entity_id   BIGINT      NOT NULL,
		entity_kind TEXT        NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		prompt      TEXT        NOT NULL,
		response    TEXT        NOT NULL,
		meta_title       TEXT NOT NULL DEFAULT '',
		meta_description TEXT NOT NULL DEFAULT '',
		tags             TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_log_entity
		ON generation_log (entity_id, entity_kind, created_at DESC)`,
}

// InitSchema はスキーマを冪等に初期化します
func (db *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
