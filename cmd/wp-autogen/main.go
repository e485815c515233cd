package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nasratulnayem/wordpress-blog-automation/cmd/wp-autogen/commands"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "wp-autogen",
		Usage: "WordPress 投稿本文と WooCommerce 商品のAI生成・リライト自動化ツール",
		Commands: []*cli.Command{
			{
				Name:  "post",
				Usage: "投稿管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "投稿一覧とステータスを表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.BoolFlag{
								Name:  "refresh",
								Usage: "キャッシュを無視して再取得",
							},
						},
						Action: commands.PostListAction,
					},
					{
						Name:  "generate",
						Usage: "指定した投稿の本文を生成",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.IntFlag{
								Name:     "id",
								Usage:    "投稿ID",
								Required: true,
							},
						},
						Action: commands.PostGenerateAction,
					},
					{
						Name:  "cancel",
						Usage: "投稿の生成をキャンセル",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.IntFlag{
								Name:     "id",
								Usage:    "投稿ID",
								Required: true,
							},
						},
						Action: commands.PostCancelAction,
					},
					{
						Name:  "logs",
						Usage: "投稿の生成ログを表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.IntFlag{
								Name:     "id",
								Usage:    "投稿ID",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "表示件数",
								Value: 20,
							},
						},
						Action: commands.PostLogsAction,
					},
					{
						Name:  "sweep",
						Usage: "本文が空の投稿をまとめて生成",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.PostSweepAction,
					},
				},
			},
			{
				Name:  "product",
				Usage: "商品リライトコマンド",
				Commands: []*cli.Command{
					{
						Name:  "sync",
						Usage: "商品を巡回してリライトキューを構築",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "after",
								Usage: "この日付以降に作成された商品のみ (YYYY-MM-DD)",
							},
							&cli.StringFlag{
								Name:  "before",
								Usage: "この日付以前に作成された商品のみ (YYYY-MM-DD)",
							},
						},
						Action: commands.ProductSyncAction,
					},
					{
						Name:  "run",
						Usage: "1件の商品をリライト",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.IntFlag{
								Name:     "id",
								Usage:    "商品ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "mode",
								Usage: "リライト範囲 (title / description / both)",
								Value: "both",
							},
						},
						Action: commands.ProductRunAction,
					},
					{
						Name:  "start",
						Usage: "バルクリライトジョブを開始",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "after",
								Usage: "この日付以降に作成された商品のみ (YYYY-MM-DD)",
							},
							&cli.StringFlag{
								Name:  "before",
								Usage: "この日付以前に作成された商品のみ (YYYY-MM-DD)",
							},
						},
						Action: commands.ProductStartAction,
					},
					{
						Name:  "stop",
						Usage: "実行中のバルクジョブに停止を要求",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.ProductStopAction,
					},
					{
						Name:  "status",
						Usage: "商品ごとの進捗とジョブ状態を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.ProductStatusAction,
					},
				},
			},
			{
				Name:  "models",
				Usage: "生成モデル管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "利用可能なモデル一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.ModelsListAction,
					},
					{
						Name:  "pick",
						Usage: "既定のモデルを自動選択して保存",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.ModelsPickAction,
					},
				},
			},
			{
				Name:  "config",
				Usage: "アプリ設定コマンド",
				Commands: []*cli.Command{
					{
						Name:  "show",
						Usage: "設定一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.ConfigShowAction,
					},
					{
						Name:  "get",
						Usage: "設定値を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "key",
								Usage:    "設定キー",
								Required: true,
							},
						},
						Action: commands.ConfigGetAction,
					},
					{
						Name:  "set",
						Usage: "設定値を保存",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "key",
								Usage:    "設定キー",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "value",
								Usage: "設定値",
							},
						},
						Action: commands.ConfigSetAction,
					},
				},
			},
			{
				Name:  "test-connection",
				Usage: "WordPressと生成モデルへの接続を確認",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.TestConnectionAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
