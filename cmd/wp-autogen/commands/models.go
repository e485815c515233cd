package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
)

// ModelsListAction は利用可能な生成モデルの一覧を表示する
func ModelsListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg, err := appCtx.RuntimeConfig(ctx)
	if err != nil {
		return err
	}

	client, err := appCtx.modelClient(cfg)
	if err != nil {
		return err
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("モデル一覧の取得に失敗: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("モデル", "使用中")
	for _, model := range models {
		current := ""
		if model == cfg.ModelName {
			current = "*"
		}
		table.Append(model, current)
	}
	table.Render()
	return nil
}

// ModelsPickAction は利用可能なモデルから既定のモデルを選んで保存する
func ModelsPickAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg, err := appCtx.RuntimeConfig(ctx)
	if err != nil {
		return err
	}

	client, err := appCtx.modelClient(cfg)
	if err != nil {
		return err
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("モデル一覧の取得に失敗: %w", err)
	}

	chosen := textmodel.ChooseDefaultModel(models)
	if chosen == "" {
		return fmt.Errorf("no usable model found in %d listed models", len(models))
	}

	if err := appCtx.SettingsRepo.SaveModelName(ctx, chosen); err != nil {
		return fmt.Errorf("モデル名の保存に失敗: %w", err)
	}

	fmt.Printf("モデル %s を既定として保存しました\n", chosen)
	return nil
}
