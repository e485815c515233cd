package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/product"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/worker"
)

const dateFlagFormat = "2006-01-02"

// ProductSyncAction は商品を巡回してキューを構築する
func ProductSyncAction(ctx context.Context, cmd *cli.Command) error {
	after, before, err := parseDateWindow(cmd)
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	queued, skipped, err := appCtx.Coordinator.Sync(ctx, after, before)
	if err != nil {
		return fmt.Errorf("商品の巡回に失敗: %w", err)
	}

	fmt.Printf("キュー投入: %d件 / 除外: %d件\n", queued, skipped)
	return nil
}

// ProductRunAction は1件の商品をリライトする
func ProductRunAction(ctx context.Context, cmd *cli.Command) error {
	id := int64(cmd.Int("id"))
	mode := product.Mode(cmd.String("mode"))
	switch mode {
	case product.ModeTitle, product.ModeDescription, product.ModeBoth:
	default:
		return fmt.Errorf("invalid mode %q: must be one of title, description, both", cmd.String("mode"))
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.ProductService.Rewrite(ctx, id, mode); err != nil {
		return fmt.Errorf("商品 %d のリライトに失敗: %w", id, err)
	}

	fmt.Printf("商品 %d のリライトが完了しました（mode=%s）\n", id, mode)
	return nil
}

// ProductStartAction はバルクリライトジョブをフォアグラウンドで実行する
// Ctrl+C で協調停止を要求し、処理中のアイテムの完了を待ってから終了する
func ProductStartAction(ctx context.Context, cmd *cli.Command) error {
	after, before, err := parseDateWindow(cmd)
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// シグナルで ctx が落ちたら停止を要求し、現在のアイテムを完走させる
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go func() {
		select {
		case <-ctx.Done():
			appCtx.Coordinator.Job().RequestStop()
		case <-watchCtx.Done():
		}
	}()

	// ジョブ本体はワーカープールのタスクとして実行する
	// タスク側の ctx はシグナルで打ち切らず、停止要求経由で止める
	pool := worker.New(context.WithoutCancel(ctx), 1, appCtx.StatusRepo, worker.WithLogger(appCtx.Logger))
	errCh := make(chan error, 1)
	if err := pool.Submit(func(runCtx context.Context) {
		errCh <- appCtx.Coordinator.Run(runCtx, after, before)
	}); err != nil {
		return err
	}

	fmt.Println("バルクリライトを開始します（Ctrl+C で停止要求）")
	pool.Stop()
	if err := <-errCh; err != nil {
		return err
	}

	fmt.Println("バルクリライトが終了しました")
	return nil
}

// ProductStopAction は実行中のバルクジョブに停止を要求する
//
// ジョブ状態はプロセス内メモリで持つため、このコマンドが効くのは
// 同一プロセス内のジョブだけ。別プロセスで動いているジョブには
// そのプロセスへの Ctrl+C を使う
func ProductStopAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	job := appCtx.Coordinator.Job()
	running, _, _ := job.Snapshot()
	if !running {
		fmt.Println("このプロセスで実行中のバルクジョブはありません")
		return nil
	}

	job.RequestStop()
	fmt.Println("停止を要求しました。処理中のアイテム完了後に停止します")
	return nil
}

// ProductStatusAction は商品ごとの進捗とジョブ状態を表示する
func ProductStatusAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	rows, err := appCtx.StatusRepo.List(ctx, status.KindProduct)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "ステータス", "タイトル", "説明", "SEO", "スラッグ", "エラー")
	counts := map[status.State]int{}
	for _, row := range rows {
		state := row.Derived()
		counts[state]++
		table.Append(
			strconv.FormatInt(row.ID, 10),
			string(state),
			flagCell(row.Flags.Title, row.TitleError),
			flagCell(row.Flags.Description, row.DescriptionError),
			flagCell(row.Flags.SEO, row.SEOError),
			flagCell(row.Flags.Slug, row.SlugError),
			row.LastError,
		)
	}
	table.Render()

	fmt.Printf("\n合計: %d件", len(rows))
	for _, state := range []status.State{status.StateQueued, status.StateProcessing, status.StateDone, status.StatePartial, status.StateError, status.StateSkipped} {
		if counts[state] > 0 {
			fmt.Printf(" / %s: %d", state, counts[state])
		}
	}
	fmt.Println()

	running, stopRequested, message := appCtx.Coordinator.Job().Snapshot()
	if running {
		fmt.Printf("ジョブ: 実行中 (%s)", message)
		if stopRequested {
			fmt.Print(" [停止要求あり]")
		}
		fmt.Println()
	}
	return nil
}

func flagCell(done bool, errCode string) string {
	if done {
		return "ok"
	}
	if errCode != "" {
		return errCode
	}
	return "-"
}

func parseDateWindow(cmd *cli.Command) (after, before time.Time, err error) {
	if raw := cmd.String("after"); raw != "" {
		after, err = time.Parse(dateFlagFormat, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --after date %q: %w", raw, err)
		}
	}
	if raw := cmd.String("before"); raw != "" {
		before, err = time.Parse(dateFlagFormat, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --before date %q: %w", raw, err)
		}
	}
	return after, before, nil
}
