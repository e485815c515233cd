package genlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

// Entry は1回の生成実行の監査記録
// 作成後は変更されない（追記専用）
type Entry struct {
	ID              uuid.UUID
	EntityID        int64
	EntityKind      status.EntityKind
	CreatedAt       time.Time
	Prompt          string
	Response        string
	MetaTitle       string
	MetaDescription string
	Tags            []string
}

// Repository は生成ログの永続化契約
type Repository interface {
	// Append は新しいログエントリを追記する
	Append(ctx context.Context, entry Entry) error

	// ListByEntity はエンティティのログを新しい順に最大 limit 件返す
	ListByEntity(ctx context.Context, id int64, kind status.EntityKind, limit int) ([]Entry, error)
}
