package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// TestConnectionAction はWordPressと生成モデルへの接続を確認する
// 片方が失敗してももう片方の確認は続ける
func TestConnectionAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg, err := appCtx.RuntimeConfig(ctx)
	if err != nil {
		return err
	}

	var failed bool

	if err := appCtx.wpClient(cfg).Ping(ctx); err != nil {
		failed = true
		fmt.Printf("WordPress: NG (%v)\n", err)
	} else {
		fmt.Println("WordPress: OK")
	}

	client, err := appCtx.modelClient(cfg)
	if err != nil {
		failed = true
		fmt.Printf("生成モデル: NG (%v)\n", err)
	} else if _, err := client.Generate(ctx, "Return the word OK only."); err != nil {
		failed = true
		fmt.Printf("生成モデル: NG (%v)\n", err)
	} else {
		fmt.Printf("生成モデル: OK (model=%s)\n", client.ModelName())
	}

	if failed {
		return fmt.Errorf("connection check failed")
	}
	return nil
}
