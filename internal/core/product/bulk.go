package product

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

// idleMessage はジョブ非実行時の表示メッセージ
const idleMessage = "idle"

// JobState はバルクジョブのプロセス全体で共有する状態
// 実行フラグ・停止要求・進捗メッセージを保持し、コーディネータが
// 協調的にポーリングする
type JobState struct {
	mu            sync.Mutex
	running       bool
	stopRequested bool
	message       string
}

// NewJobState はアイドル状態のジョブ状態を作成する
func NewJobState() *JobState {
	return &JobState{message: idleMessage}
}

// Begin はジョブの開始を試みる。既に実行中なら false を返す
func (j *JobState) Begin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	j.stopRequested = false
	j.message = "starting"
	return true
}

// RequestStop は協調的な停止を要求する
// 実行中のループは次のポーリング地点でこのフラグを観測して抜ける
func (j *JobState) RequestStop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		j.stopRequested = true
	}
}

// StopRequested は停止要求の有無を返す
func (j *JobState) StopRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stopRequested
}

// SetMessage は進捗メッセージを更新する
func (j *JobState) SetMessage(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.message = fmt.Sprintf(format, args...)
}

// Snapshot は現在の状態を返す
func (j *JobState) Snapshot() (running bool, stopRequested bool, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running, j.stopRequested, j.message
}

// finish はジョブ終了時の後始末。終了経路にかかわらず defer で呼ぶ
func (j *JobState) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.running = false
	j.stopRequested = false
	j.message = idleMessage
}

// Coordinator は日付で絞った商品集合に対してリライトを駆動する
//
// 発見フェーズでカタログをページングして対象行を queued にし、
// 処理フェーズで最も古い実行可能行を1件ずつ直列に処理する。
// ワーカープールには1つの長寿命タスクとして投入される想定
type Coordinator struct {
	svc          *Service
	store        status.Store
	settingsRepo settings.Repository
	job          *JobState
	logger       *slog.Logger
}

// CoordinatorOption は Coordinator のオプション設定
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger はロガーを設定する
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator は新しいバルクコーディネータを作成する
func NewCoordinator(
	svc *Service,
	store status.Store,
	settingsRepo settings.Repository,
	job *JobState,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		svc:          svc,
		store:        store,
		settingsRepo: settingsRepo,
		job:          job,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Job はジョブ状態を返す（CLIやハンドラの表示用）
func (c *Coordinator) Job() *JobState {
	return c.job
}

// Run はバルクジョブを最初から最後まで実行する
// 既にジョブが実行中の場合は何もせずエラーを返す
func (c *Coordinator) Run(ctx context.Context, after, before time.Time) error {
	if !c.job.Begin() {
		return fmt.Errorf("bulk job is already running")
	}
	defer c.job.finish()

	queued, skipped, err := c.Sync(ctx, after, before)
	if err != nil {
		return err
	}
	c.logger.Info("discovery finished", "queued", queued, "skipped", skipped)

	if c.job.StopRequested() {
		return nil
	}
	return c.process(ctx)
}

// Sync は発見フェーズのみを実行する
// 除外規則に該当する商品は skipped（終端）にし、それ以外は
// 進捗のある行を巻き戻さずに queued へ遷移させる
func (c *Coordinator) Sync(ctx context.Context, after, before time.Time) (queued, skipped int, err error) {
	cfg, err := settings.Load(ctx, c.settingsRepo)
	if err != nil {
		return 0, 0, err
	}
	if err := cfg.Validate(); err != nil {
		return 0, 0, err
	}
	commerce := c.svc.commerceFactory(cfg)

	page := 1
	for {
		// ページ境界での停止フラグ確認。既に queued にした行はそのまま残す
		if c.job.StopRequested() {
			c.logger.Info("stop requested, halting discovery", "page", page)
			return queued, skipped, nil
		}

		c.job.SetMessage("discovering page %d", page)
		products, totalPages, lerr := commerce.ListProductsPage(ctx, ListQuery{
			Page:          page,
			PerPage:       cfg.PostsPerPage,
			CreatedAfter:  after,
			CreatedBefore: before,
		})
		if lerr != nil {
			return queued, skipped, fmt.Errorf("failed to list products page %d: %w", page, lerr)
		}

		for _, p := range products {
			enq, serr := c.discover(ctx, cfg, p)
			if serr != nil {
				return queued, skipped, serr
			}
			switch enq {
			case discoveredQueued:
				queued++
			case discoveredSkipped:
				skipped++
			}
		}

		if page >= totalPages || len(products) == 0 {
			return queued, skipped, nil
		}
		page++
	}
}

type discovery int

const (
	discoveredUnchanged discovery = iota
	discoveredQueued
	discoveredSkipped
)

func (c *Coordinator) discover(ctx context.Context, cfg *settings.RuntimeConfig, p Product) (discovery, error) {
	if isExcluded(cfg, p) {
		if err := c.store.Upsert(ctx, p.ID, status.KindProduct, status.StateSkipped, ""); err != nil {
			return discoveredUnchanged, err
		}
		return discoveredSkipped, nil
	}

	row, err := c.store.Get(ctx, p.ID, status.KindProduct)
	if err != nil {
		return discoveredUnchanged, err
	}
	if existing, ok := row.Get(); ok {
		switch existing.Derived() {
		case status.StateDone, status.StatePartial, status.StateSkipped,
			status.StateQueued, status.StateProcessing:
			// 進捗のある行を pending に巻き戻さない
			return discoveredUnchanged, nil
		}
	}

	if err := c.store.Upsert(ctx, p.ID, status.KindProduct, status.StateQueued, ""); err != nil {
		return discoveredUnchanged, err
	}
	return discoveredQueued, nil
}

// isExcluded は明示ID・カテゴリ・タイトルキーワードの除外規則を判定する
func isExcluded(cfg *settings.RuntimeConfig, p Product) bool {
	for _, id := range cfg.ExcludedProductIDs {
		if p.ID == id {
			return true
		}
	}
	for _, cat := range cfg.ExcludedCategories {
		for _, pc := range p.Categories {
			if strings.EqualFold(strings.TrimSpace(cat), strings.TrimSpace(pc)) {
				return true
			}
		}
	}
	lower := strings.ToLower(p.Name)
	for _, kw := range cfg.ExcludedKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// process は実行可能な行がなくなるか停止要求を観測するまで1件ずつ処理する
// 失敗した商品は error のままループを継続し、ジョブ全体は止めない
func (c *Coordinator) process(ctx context.Context) error {
	cfg, err := settings.Load(ctx, c.settingsRepo)
	if err != nil {
		return err
	}

	// error 行も実行可能なので、恒常的に失敗する商品で
	// ループが回り続けないよう同一実行内の再ピックで打ち切る
	attempted := make(map[int64]struct{})
	processed := 0

	for {
		if c.job.StopRequested() {
			c.logger.Info("stop requested, halting processing", "processed", processed)
			return nil
		}

		row, err := c.store.OldestRunnable(ctx, status.KindProduct)
		if err != nil {
			return err
		}
		entity, ok := row.Get()
		if !ok {
			c.logger.Info("no runnable products remain", "processed", processed)
			return nil
		}
		if _, seen := attempted[entity.ID]; seen {
			c.logger.Info("all remaining products already attempted this run", "processed", processed)
			return nil
		}
		attempted[entity.ID] = struct{}{}

		c.job.SetMessage("processing product %d", entity.ID)
		if err := c.store.Upsert(ctx, entity.ID, status.KindProduct, status.StateProcessing, ""); err != nil {
			return err
		}

		if rerr := c.svc.Rewrite(ctx, entity.ID, ModeBoth); rerr != nil {
			c.logger.Warn("product rewrite failed, continuing", "product_id", entity.ID, "error", rerr)
		}
		processed++

		// 下流APIへの負荷を抑える商品間ディレイ
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.BulkItemDelay):
		}
	}
}
