package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
)

var (
	// ErrAlreadyQueued は対象エンティティが既に queued / processing の場合のエラー
	ErrAlreadyQueued = errors.New("entity is already queued or processing")

	// ErrQueueFull は実行キューが満杯の場合のエラー
	ErrQueueFull = errors.New("worker queue is full")

	// ErrStopped は停止済みプールへの投入エラー
	ErrStopped = errors.New("worker pool is stopped")
)

const defaultQueueSize = 256

// Pool は固定サイズのワーカープール
//
// エンティティ単位の投入は「確認してからマークする」を投入側ミューテックスの
// 下で行い、同一IDの二重投入を拒否する。異なるIDの実行は並列に走る。
type Pool struct {
	store  status.Store
	logger *slog.Logger

	tasks chan func(ctx context.Context)
	wg    sync.WaitGroup

	mu      sync.Mutex // 投入時の check-then-mark を直列化する
	stopped bool
}

// Option は Pool のオプション設定
type Option func(*Pool)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithQueueSize は実行キューの容量を設定する
func WithQueueSize(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.tasks = make(chan func(ctx context.Context), size)
		}
	}
}

// New は新しいワーカープールを作成し、workers 個のワーカーを起動する
func New(ctx context.Context, workers int, store status.Store, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		store:  store,
		logger: slog.Default(),
		tasks:  make(chan func(ctx context.Context), defaultQueueSize),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return p
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for task := range p.tasks {
		task(ctx)
	}
}

// Enqueue はエンティティをキューに積む
// 対象が既に queued / processing の場合は ErrAlreadyQueued を返す
// ステータスの確認とマークは他の投入者に対してアトミックに行われる
func (p *Pool) Enqueue(ctx context.Context, id int64, kind status.EntityKind, run func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}

	current, err := p.store.Get(ctx, id, kind)
	if err != nil {
		return err
	}
	if row, ok := current.Get(); ok {
		if row.Status == status.StateQueued || row.Status == status.StateProcessing {
			return ErrAlreadyQueued
		}
	}

	if err := p.store.Upsert(ctx, id, kind, status.StateQueued, ""); err != nil {
		return err
	}

	select {
	case p.tasks <- run:
		return nil
	default:
		// キューに乗らなかった場合はマークを残さない
		if uerr := p.store.Upsert(ctx, id, kind, status.StateError, string(status.KindInternal)); uerr != nil {
			p.logger.Warn("failed to roll back queue mark", "entity_id", id, "error", uerr)
		}
		return ErrQueueFull
	}
}

// Submit はエンティティに紐づかないタスクを投入する
// （バルクコーディネータ用。二重投入はジョブ状態側で防ぐ）
func (p *Pool) Submit(run func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}

	select {
	case p.tasks <- run:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop は新規投入を締め切り、実行中のタスクの完了を待つ
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
