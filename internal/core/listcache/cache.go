package listcache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
)

// Cache は高コストな一覧取得呼び出しの直近結果を保持するTTLキャッシュ
//
// スナップショット（値・シグネチャ・取得時刻）は1つのポインタとして
// アトミックに差し替えられるため、読み手はロックなしで一貫した組を見る。
// 上流が失敗した場合は最後に成功したスナップショットを返す
// （stale-but-available）。
type Cache[T any] struct {
	ttl  time.Duration
	snap atomic.Pointer[snapshot[T]]
}

type snapshot[T any] struct {
	value     T
	signature string
	fetchedAt time.Time
}

// New は新しいキャッシュを作成する
// ttl が 0 以下の場合はキャッシュヒットせず、常に上流へ取りに行く
func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl}
}

// Signature はエンドポイントとページングパラメータからキャッシュキーを作る
func Signature(parts ...string) string {
	return strings.Join(parts, "|")
}

// Get はキャッシュが有効ならその値を、そうでなければ fetch の結果を返す
// force が true の場合はキャッシュを無視して必ず上流へ取りに行く
func (c *Cache[T]) Get(ctx context.Context, signature string, force bool, fetch func(ctx context.Context) (T, error)) (T, error) {
	if !force && c.ttl > 0 {
		if s := c.snap.Load(); s != nil && s.signature == signature && time.Since(s.fetchedAt) < c.ttl {
			return s.value, nil
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		// 上流障害時は最後の正常スナップショットで代替する
		if s := c.snap.Load(); s != nil {
			return s.value, nil
		}
		var zero T
		return zero, err
	}

	c.snap.Store(&snapshot[T]{
		value:     value,
		signature: signature,
		fetchedAt: time.Now(),
	})
	return value, nil
}

// Invalidate はキャッシュを破棄する
// パイプラインが更新をコミットした直後に呼ばれ、更新済みエンティティの
// 古い「空」状態を返さないことを保証する
func (c *Cache[T]) Invalidate() {
	c.snap.Store(nil)
}
