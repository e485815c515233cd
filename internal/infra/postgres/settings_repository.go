package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/platform/database"
)

// SettingsRepository は app_config テーブルのPostgreSQL実装
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository は新しい設定リポジトリを作成する
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get は1キーの値を取得する（存在しない場合は None）
func (r *SettingsRepository) Get(ctx context.Context, key string) (mo.Option[string], error) {
	var value string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM app_config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return mo.None[string](), nil
	}
	if err != nil {
		return mo.None[string](), fmt.Errorf("failed to get config value: %w", err)
	}
	return mo.Some(value), nil
}

// GetAll は全設定をマップで返す
func (r *SettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT key, value FROM app_config`)
	if err != nil {
		return nil, fmt.Errorf("failed to list config values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config value: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// Set は複数キーをトランザクション内でまとめて書き込む
func (r *SettingsRepository) Set(ctx context.Context, updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for key, value := range updates {
		if _, err := tx.Exec(ctx, `
			INSERT INTO app_config (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, key, value); err != nil {
			return fmt.Errorf("failed to set config value %q: %w", key, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveModelName は補正後のモデル名を永続化する
// マルチキークライアントのモデル名補正の保存先として使う
func (r *SettingsRepository) SaveModelName(ctx context.Context, name string) error {
	return r.Set(ctx, map[string]string{settings.KeyModelName: name})
}

// インターフェース実装の確認
var (
	_ settings.Repository  = (*SettingsRepository)(nil)
	_ textmodel.ModelStore = (*SettingsRepository)(nil)
)
