package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
)

// 表示時に値を伏せるキー
var secretKeys = map[string]struct{}{
	settings.KeyWPAppPassword:    {},
	settings.KeyWCConsumerSecret: {},
	settings.KeyModelAPIKeys:     {},
}

// ConfigShowAction は設定の一覧を表示する。秘匿キーの値は伏せる
func ConfigShowAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	values, err := appCtx.SettingsRepo.GetAll(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("キー", "値")
	for _, key := range keys {
		table.Append(key, maskValue(key, values[key]))
	}
	table.Render()
	return nil
}

// ConfigGetAction は1つの設定値を表示する
func ConfigGetAction(ctx context.Context, cmd *cli.Command) error {
	key := cmd.String("key")
	if key == "" {
		return fmt.Errorf("--key is required")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	value, err := appCtx.SettingsRepo.Get(ctx, key)
	if err != nil {
		return err
	}
	raw, ok := value.Get()
	if !ok {
		return fmt.Errorf("config key %q is not set", key)
	}

	fmt.Println(raw)
	return nil
}

// ConfigSetAction は設定値を保存する
func ConfigSetAction(ctx context.Context, cmd *cli.Command) error {
	key := cmd.String("key")
	if key == "" {
		return fmt.Errorf("--key is required")
	}
	value := cmd.String("value")

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.SettingsRepo.Set(ctx, map[string]string{key: value}); err != nil {
		return fmt.Errorf("設定の保存に失敗: %w", err)
	}

	fmt.Printf("%s を保存しました\n", key)
	return nil
}

func maskValue(key, value string) string {
	if value == "" {
		return ""
	}
	if _, secret := secretKeys[key]; secret {
		return "********"
	}
	// 複数行の値は1行目だけ見せる
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		return value[:idx] + " ..."
	}
	return value
}
