package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/post"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/retrypolicy"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/worker"
)

// sweep のリトライ設定（ネットワーク断を挟んでも回し続けるための指数バックオフ）
const (
	sweepInitialDelay = 5 * time.Second
	sweepMaxDelay     = 300 * time.Second
)

// PostListAction は投稿一覧とステータスを表示する
func PostListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg, err := appCtx.RuntimeConfig(ctx)
	if err != nil {
		return err
	}

	posts, err := appCtx.listPosts(ctx, cfg, cmd.Bool("refresh"))
	if err != nil {
		return fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}

	rows, err := appCtx.StatusRepo.List(ctx, status.KindPost)
	if err != nil {
		return err
	}
	statuses := make(map[int64]status.Entity, len(rows))
	for _, row := range rows {
		statuses[row.ID] = row
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "タイトル", "本文", "ステータス", "エラー")
	for _, p := range posts {
		body := "あり"
		if post.IsEmptyContent(p.ContentHTML) {
			body = "空"
		}
		state := string(status.StatePending)
		lastError := ""
		if row, ok := statuses[p.ID]; ok {
			state = string(row.Status)
			lastError = row.LastError
		}
		table.Append(strconv.FormatInt(p.ID, 10), truncateTitle(p.Title), body, state, lastError)
	}
	table.Render()

	fmt.Printf("\n合計: %d件\n", len(posts))
	return nil
}

// PostGenerateAction は1件の投稿を生成パイプラインにかける
func PostGenerateAction(ctx context.Context, cmd *cli.Command) error {
	id := int64(cmd.Int("id"))
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.StatusRepo.Upsert(ctx, id, status.KindPost, status.StateProcessing, ""); err != nil {
		return err
	}
	if err := appCtx.PostService.Run(ctx, id); err != nil {
		if uerr := appCtx.StatusRepo.Upsert(ctx, id, status.KindPost, status.StateError, status.CompactError(err)); uerr != nil {
			appCtx.Logger.Error("failed to mark post error", "post_id", id, "error", uerr)
		}
		return fmt.Errorf("投稿 %d の生成に失敗: %w", id, err)
	}

	fmt.Printf("投稿 %d の生成が完了しました\n", id)
	return nil
}

// PostCancelAction は投稿の生成をキャンセルする
func PostCancelAction(ctx context.Context, cmd *cli.Command) error {
	id := int64(cmd.Int("id"))
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.PostService.Cancel(ctx, id); err != nil {
		return err
	}
	fmt.Printf("投稿 %d をキャンセルしました（実行中の処理は次のステップ境界で停止します）\n", id)
	return nil
}

// PostLogsAction は投稿の生成ログを表示する
func PostLogsAction(ctx context.Context, cmd *cli.Command) error {
	id := int64(cmd.Int("id"))
	limit := cmd.Int("limit")

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	entries, err := appCtx.LogRepo.ListByEntity(ctx, id, status.KindPost, limit)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("作成日時", "メタタイトル", "タグ", "応答サイズ")
	for _, entry := range entries {
		table.Append(
			entry.CreatedAt.Format(time.RFC3339),
			entry.MetaTitle,
			strconv.Itoa(len(entry.Tags)),
			fmt.Sprintf("%d bytes", len(entry.Response)),
		)
	}
	table.Render()
	return nil
}

// PostSweepAction は本文が空の投稿をすべて生成パイプラインにかける
//
// 1件ごとに指数バックオフ付きで再試行し、一時的なネットワーク断や
// クォータ枯渇があっても掃き切るまで回し続ける。生成後に本文が
// 実際に埋まったかを再取得で確認する
func PostSweepAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg, err := appCtx.RuntimeConfig(ctx)
	if err != nil {
		return err
	}

	posts, err := appCtx.listPosts(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}

	rows, err := appCtx.StatusRepo.List(ctx, status.KindPost)
	if err != nil {
		return err
	}
	states := make(map[int64]status.State, len(rows))
	for _, row := range rows {
		states[row.ID] = row.Status
	}

	var targets []post.Post
	for _, p := range posts {
		if !post.IsEmptyContent(p.ContentHTML) {
			continue
		}
		if states[p.ID] == status.StateDone {
			continue
		}
		targets = append(targets, p)
	}

	// 毎回同じ順で同じ投稿に当たり続けないようにシャッフルする
	rand.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})

	fmt.Printf("対象: %d件 / 全%d件\n", len(targets), len(posts))

	policy := retrypolicy.Policy{
		MaxAttempts: 0, // 無制限。バックオフ上限までは粘る
		Backoff:     retrypolicy.Exponential(sweepInitialDelay, sweepMaxDelay),
	}

	pool := worker.New(ctx, appCtx.Config.MaxWorkers, appCtx.StatusRepo, worker.WithLogger(appCtx.Logger))

	var (
		mu      sync.Mutex
		done    int
		failed  int
		skipped int
	)
	queued := 0
	for _, target := range targets {
		err := pool.Enqueue(ctx, target.ID, status.KindPost, func(ctx context.Context) {
			ok := appCtx.sweepOne(ctx, cfg, policy, target)
			mu.Lock()
			if ok {
				done++
			} else {
				failed++
			}
			mu.Unlock()
		})
		switch {
		case errors.Is(err, worker.ErrAlreadyQueued):
			skipped++
		case err != nil:
			appCtx.Logger.Error("failed to enqueue post", "post_id", target.ID, "error", err)
		default:
			queued++
		}
	}

	fmt.Printf("投入: %d件 / 既に処理中: %d件\n", queued, skipped)
	pool.Stop()

	fmt.Printf("\n完了: %d件 / 失敗: %d件\n", done, failed)
	return nil
}

// sweepOne は1件の投稿を生成し、生成後の再取得で本文が埋まったことを確認する
func (ac *AppContext) sweepOne(ctx context.Context, cfg *settings.RuntimeConfig, policy retrypolicy.Policy, target post.Post) bool {
	if err := ac.StatusRepo.Upsert(ctx, target.ID, status.KindPost, status.StateProcessing, ""); err != nil {
		ac.Logger.Error("failed to mark post processing", "post_id", target.ID, "error", err)
		return false
	}

	// リトライするのは一時的な障害だけ。設定不備や検証エラーは即座に諦める
	err := policy.Do(ctx, func(ctx context.Context) error {
		rerr := ac.PostService.Run(ctx, target.ID)
		if rerr == nil {
			return nil
		}
		switch status.KindOf(rerr) {
		case status.KindNetwork, status.KindQuota:
			return rerr
		default:
			return retrypolicy.Permanent(rerr)
		}
	})
	if err != nil {
		ac.Logger.Error("sweep item failed", "post_id", target.ID, "error", err)
		if uerr := ac.StatusRepo.Upsert(ctx, target.ID, status.KindPost, status.StateError, status.CompactError(err)); uerr != nil {
			ac.Logger.Error("failed to mark post error", "post_id", target.ID, "error", uerr)
		}
		return false
	}

	refreshed, err := ac.cmsFactory(cfg).GetPost(ctx, target.ID)
	if err != nil || post.IsEmptyContent(refreshed.ContentHTML) {
		ac.Logger.Warn("post still empty after generation", "post_id", target.ID, "error", err)
		return false
	}
	return true
}

func truncateTitle(title string) string {
	const max = 50
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max]) + "..."
}
