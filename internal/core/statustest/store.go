// Package statustest はテスト用のインメモリ Status Store を提供します
package statustest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/mo"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

type key struct {
	id   int64
	kind status.EntityKind
}

// Store は status.Store のインメモリ実装
type Store struct {
	mu      sync.Mutex
	rows    map[key]status.Entity
	clock   time.Time
	Upserts []status.Entity // Upsert の呼び出し履歴（検証用）
}

// NewStore は空のインメモリストアを作成する
func NewStore() *Store {
	return &Store{
		rows:  make(map[key]status.Entity),
		clock: time.Unix(1_000_000, 0),
	}
}

// tick は updated_at の単調増加を保証する疑似時計
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Seed はテスト前提の行を直接登録する
func (s *Store) Seed(e status.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.tick()
	}
	s.rows[key{e.ID, e.Kind}] = e
}

func (s *Store) Upsert(ctx context.Context, id int64, kind status.EntityKind, state status.State, errCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rows[key{id, kind}]
	row.ID = id
	row.Kind = kind
	row.Status = state
	row.LastError = errCode
	row.UpdatedAt = s.tick()
	s.rows[key{id, kind}] = row
	s.Upserts = append(s.Upserts, row)
	return nil
}

func (s *Store) Get(ctx context.Context, id int64, kind status.EntityKind) (mo.Option[status.Entity], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[key{id, kind}]; ok {
		return mo.Some(row), nil
	}
	return mo.None[status.Entity](), nil
}

func (s *Store) List(ctx context.Context, kind status.EntityKind) ([]status.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []status.Entity
	for k, row := range s.rows {
		if k.kind == kind {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetFlags(ctx context.Context, id int64, kind status.EntityKind, update status.FlagUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.rows[key{id, kind}]
	row.ID = id
	row.Kind = kind

	if update.TitleDone != nil {
		row.Flags.Title = *update.TitleDone
	}
	if update.DescriptionDone != nil {
		row.Flags.Description = *update.DescriptionDone
	}
	if update.SEODone != nil {
		row.Flags.SEO = *update.SEODone
	}
	if update.SlugDone != nil {
		row.Flags.Slug = *update.SlugDone
	}
	if update.TitleError != nil {
		row.TitleError = *update.TitleError
	}
	if update.DescriptionError != nil {
		row.DescriptionError = *update.DescriptionError
	}
	if update.SEOError != nil {
		row.SEOError = *update.SEOError
	}
	if update.SlugError != nil {
		row.SlugError = *update.SlugError
	}
	if update.LastTitle != nil {
		row.LastTitle = *update.LastTitle
	}
	if update.LastSlug != nil {
		row.LastSlug = *update.LastSlug
	}
	if update.LastMetaTitle != nil {
		row.LastMetaTitle = *update.LastMetaTitle
	}
	if update.LastMetaDescription != nil {
		row.LastMetaDescription = *update.LastMetaDescription
	}
	if update.LastFocusKeyword != nil {
		row.LastFocusKeyword = *update.LastFocusKeyword
	}

	row.UpdatedAt = s.tick()
	s.rows[key{id, kind}] = row
	return nil
}

func (s *Store) OldestRunnable(ctx context.Context, kind status.EntityKind) (mo.Option[status.Entity], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []status.Entity
	for k, row := range s.rows {
		if k.kind != kind {
			continue
		}
		switch row.Status {
		case status.StateQueued, status.StateError, status.StateProcessing:
			candidates = append(candidates, row)
		}
	}
	if len(candidates) == 0 {
		return mo.None[status.Entity](), nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})
	return mo.Some(candidates[0]), nil
}

// インターフェース実装の確認
var _ status.Store = (*Store)(nil)
