// Package postgres はコア層のリポジトリ契約のPostgreSQL実装を提供します
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/platform/database"
)

// entityColumns は entity_status の取得カラム（scanEntity と対応）
const entityColumns = `entity_id, entity_kind, status, updated_at, last_error,
	title_done, desc_done, seo_done, slug_done,
	title_error, desc_error, seo_error, slug_error,
	last_title, last_slug, last_meta_title, last_meta_desc, last_focus_kw`

// StatusRepository はエンティティステータスのPostgreSQL実装
type StatusRepository struct {
	db *database.DB
}

// NewStatusRepository は新しいステータスリポジトリを作成する
func NewStatusRepository(db *database.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Upsert はステータスと短縮エラーコードを書き込む
func (r *StatusRepository) Upsert(ctx context.Context, id int64, kind status.EntityKind, state status.State, errCode string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO entity_status (entity_id, entity_kind, status, last_error, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (entity_id, entity_kind) DO UPDATE
		SET status = EXCLUDED.status, last_error = EXCLUDED.last_error, updated_at = now()
	`, id, string(kind), string(state), errCode)
	if err != nil {
		return fmt.Errorf("failed to upsert entity status: %w", err)
	}
	return nil
}

// Get は1件取得する（存在しない場合は None）
func (r *StatusRepository) Get(ctx context.Context, id int64, kind status.EntityKind) (mo.Option[status.Entity], error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entity_status WHERE entity_id = $1 AND entity_kind = $2`,
		id, string(kind))

	entity, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return mo.None[status.Entity](), nil
	}
	if err != nil {
		return mo.None[status.Entity](), fmt.Errorf("failed to get entity status: %w", err)
	}
	return mo.Some(entity), nil
}

// List は種別内の全行を返す
func (r *StatusRepository) List(ctx context.Context, kind status.EntityKind) ([]status.Entity, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entity_status WHERE entity_kind = $1 ORDER BY entity_id`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list entity status: %w", err)
	}
	defer rows.Close()

	var entities []status.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity status: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// SetFlags は指定されたフィールドのみを更新する（merge by field）
// 行が存在しない場合は空の行を先に作る
func (r *StatusRepository) SetFlags(ctx context.Context, id int64, kind status.EntityKind, update status.FlagUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO entity_status (entity_id, entity_kind)
		VALUES ($1, $2)
		ON CONFLICT (entity_id, entity_kind) DO NOTHING
	`, id, string(kind))
	if err != nil {
		return fmt.Errorf("failed to ensure entity status row: %w", err)
	}

	sets := []string{"updated_at = now()"}
	args := []any{id, string(kind)}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.TitleDone != nil {
		add("title_done", *update.TitleDone)
	}
	if update.DescriptionDone != nil {
		add("desc_done", *update.DescriptionDone)
	}
	if update.SEODone != nil {
		add("seo_done", *update.SEODone)
	}
	if update.SlugDone != nil {
		add("slug_done", *update.SlugDone)
	}
	if update.TitleError != nil {
		add("title_error", *update.TitleError)
	}
	if update.DescriptionError != nil {
		add("desc_error", *update.DescriptionError)
	}
	if update.SEOError != nil {
		add("seo_error", *update.SEOError)
	}
	if update.SlugError != nil {
		add("slug_error", *update.SlugError)
	}
	if update.LastTitle != nil {
		add("last_title", *update.LastTitle)
	}
	if update.LastSlug != nil {
		add("last_slug", *update.LastSlug)
	}
	if update.LastMetaTitle != nil {
		add("last_meta_title", *update.LastMetaTitle)
	}
	if update.LastMetaDescription != nil {
		add("last_meta_desc", *update.LastMetaDescription)
	}
	if update.LastFocusKeyword != nil {
		add("last_focus_kw", *update.LastFocusKeyword)
	}

	query := fmt.Sprintf(
		`UPDATE entity_status SET %s WHERE entity_id = $1 AND entity_kind = $2`,
		strings.Join(sets, ", "))
	if _, err := r.db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update entity flags: %w", err)
	}
	return nil
}

// OldestRunnable は queued / error / processing のうち最も古い行を返す
func (r *StatusRepository) OldestRunnable(ctx context.Context, kind status.EntityKind) (mo.Option[status.Entity], error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+entityColumns+`
		FROM entity_status
		WHERE entity_kind = $1 AND status IN ('queued', 'error', 'processing')
		ORDER BY updated_at ASC
		LIMIT 1
	`, string(kind))

	entity, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return mo.None[status.Entity](), nil
	}
	if err != nil {
		return mo.None[status.Entity](), fmt.Errorf("failed to pick runnable entity: %w", err)
	}
	return mo.Some(entity), nil
}

func scanEntity(row pgx.Row) (status.Entity, error) {
	var e status.Entity
	var kind, state string
	err := row.Scan(
		&e.ID, &kind, &state, &e.UpdatedAt, &e.LastError,
		&e.Flags.Title, &e.Flags.Description, &e.Flags.SEO, &e.Flags.Slug,
		&e.TitleError, &e.DescriptionError, &e.SEOError, &e.SlugError,
		&e.LastTitle, &e.LastSlug, &e.LastMetaTitle, &e.LastMetaDescription, &e.LastFocusKeyword,
	)
	if err != nil {
		return status.Entity{}, err
	}
	e.Kind = status.EntityKind(kind)
	e.Status = status.State(state)
	return e, nil
}

// インターフェース実装の確認
var _ status.Store = (*StatusRepository)(nil)
