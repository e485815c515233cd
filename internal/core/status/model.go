package status

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// EntityKind はステータス管理対象のエンティティ種別
type EntityKind string

const (
	KindPost    EntityKind = "post"
	KindProduct EntityKind = "product"
)

// State はエンティティの処理状態
type State string

const (
	StatePending    State = "pending"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StatePartial    State = "partial"
	StateError      State = "error"
	StateCanceled   State = "canceled"
	StateSkipped    State = "skipped"
)

// Flags は商品の4つの独立したサブタスクの完了フラグ
type Flags struct {
	Title       bool
	Description bool
	SEO         bool
	Slug        bool
}

// AllDone は4つのフラグがすべて完了していれば true を返す
func (f Flags) AllDone() bool {
	return f.Title && f.Description && f.SEO && f.Slug
}

// AnyDone はいずれかのフラグが完了していれば true を返す
func (f Flags) AnyDone() bool {
	return f.Title || f.Description || f.SEO || f.Slug
}

// Entity は1エンティティ分のステータス行
type Entity struct {
	ID        int64
	Kind      EntityKind
	Status    State
	UpdatedAt time.Time
	LastError string

	// 以下は商品エンティティのみ使用
	Flags            Flags
	TitleError       string
	DescriptionError string
	SEOError         string
	SlugError        string

	LastTitle           string
	LastSlug            string
	LastMetaTitle       string
	LastMetaDescription string
	LastFocusKeyword    string
}

// Derived は優先順位 skipped > 明示ステータス > フラグ導出 で表示ステータスを返す
func (e Entity) Derived() State {
	return Derive(e.Status, e.Flags)
}

// Derive は明示ステータスと完了フラグから実効ステータスを導出する
// skipped は常に最優先、次に明示的な状態、最後にフラグから導出する
func Derive(explicit State, f Flags) State {
	if explicit == StateSkipped {
		return StateSkipped
	}
	switch explicit {
	case StateDone, StateProcessing, StateQueued, StateError, StateCanceled, StatePartial:
		return explicit
	}
	switch {
	case f.AllDone():
		return StateDone
	case f.AnyDone():
		return StatePartial
	default:
		return StatePending
	}
}

// FlagUpdate はフラグ行に対する部分更新
// nil のフィールドは既存値を保持する（merge by field）
type FlagUpdate struct {
	TitleDone       *bool
	DescriptionDone *bool
	SEODone         *bool
	SlugDone        *bool

	TitleError       *string
	DescriptionError *string
	SEOError         *string
	SlugError        *string

	LastTitle           *string
	LastSlug            *string
	LastMetaTitle       *string
	LastMetaDescription *string
	LastFocusKeyword    *string
}

// IsEmpty は更新対象フィールドが1つもない場合に true を返す
func (u FlagUpdate) IsEmpty() bool {
	return u.TitleDone == nil && u.DescriptionDone == nil && u.SEODone == nil && u.SlugDone == nil &&
		u.TitleError == nil && u.DescriptionError == nil && u.SEOError == nil && u.SlugError == nil &&
		u.LastTitle == nil && u.LastSlug == nil && u.LastMetaTitle == nil &&
		u.LastMetaDescription == nil && u.LastFocusKeyword == nil
}

// Bool はフラグ部分更新用のポインタヘルパー
func Bool(v bool) *bool { return &v }

// String は文字列部分更新用のポインタヘルパー
func String(v string) *string { return &v }

// Store はエンティティステータスの永続化契約
// 書き込みは呼び出しが返った時点で永続化されていることを前提とする
// （パイプラインは write-then-continue で次のステップに進む）
type Store interface {
	// Upsert はステータスと短縮エラーコードを書き込む
	Upsert(ctx context.Context, id int64, kind EntityKind, state State, errCode string) error

	// Get は1件取得する（存在しない場合は None）
	Get(ctx context.Context, id int64, kind EntityKind) (mo.Option[Entity], error)

	// List は種別内の全行を返す
	List(ctx context.Context, kind EntityKind) ([]Entity, error)

	// SetFlags は指定されたフィールドのみを更新する
	SetFlags(ctx context.Context, id int64, kind EntityKind, update FlagUpdate) error

	// OldestRunnable は queued / error / processing のうち updated_at が
	// 最も古い行を返す（バルク処理のピックアップ用）
	OldestRunnable(ctx context.Context, kind EntityKind) (mo.Option[Entity], error)
}
