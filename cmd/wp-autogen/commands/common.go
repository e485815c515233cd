// Package commands は wp-autogen CLI の各コマンド実装を提供します
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/listcache"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/post"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/product"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/infra/gemini"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/infra/postgres"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/infra/woocommerce"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/infra/wordpress"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/platform/config"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/platform/database"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config   *config.Config
	Logger   *slog.Logger
	Database *database.DB

	StatusRepo   *postgres.StatusRepository
	SettingsRepo *postgres.SettingsRepository
	LogRepo      *postgres.LogRepository

	PostCache *listcache.Cache[[]post.Post]

	PostService    *post.Service
	ProductService *product.Service
	Coordinator    *product.Coordinator
}

// NewAppContext は設定を読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.DefaultConfig())

	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	ac := &AppContext{
		Config:       cfg,
		Logger:       appLogger,
		Database:     db,
		StatusRepo:   postgres.NewStatusRepository(db),
		SettingsRepo: postgres.NewSettingsRepository(db),
		LogRepo:      postgres.NewLogRepository(db),
		PostCache:    listcache.New[[]post.Post](time.Duration(cfg.PostCacheTTLSeconds) * time.Second),
	}

	ac.PostService = post.NewService(
		ac.StatusRepo,
		ac.SettingsRepo,
		ac.LogRepo,
		ac.PostCache,
		ac.cmsFactory,
		ac.modelFactory,
		post.WithServiceLogger(appLogger),
	)

	ac.ProductService = product.NewService(
		ac.StatusRepo,
		ac.SettingsRepo,
		ac.commerceFactory,
		ac.metaWriterFactory,
		ac.modelFactory,
		product.WithServiceLogger(appLogger),
	)

	ac.Coordinator = product.NewCoordinator(
		ac.ProductService,
		ac.StatusRepo,
		ac.SettingsRepo,
		product.NewJobState(),
		product.WithCoordinatorLogger(appLogger),
	)

	return ac, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}

// RuntimeConfig は実行設定を読み込んで検証する
func (ac *AppContext) RuntimeConfig(ctx context.Context) (*settings.RuntimeConfig, error) {
	cfg, err := settings.Load(ctx, ac.SettingsRepo)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (ac *AppContext) cmsFactory(cfg *settings.RuntimeConfig) post.ContentAPI {
	return ac.wpClient(cfg)
}

func (ac *AppContext) wpClient(cfg *settings.RuntimeConfig) *wordpress.Client {
	return wordpress.NewClient(cfg.WPBaseURL, cfg.WPUsername, cfg.WPAppPassword,
		wordpress.WithLogger(ac.Logger))
}

func (ac *AppContext) commerceFactory(cfg *settings.RuntimeConfig) product.CommerceAPI {
	return woocommerce.NewClient(cfg.WPBaseURL, cfg.WCConsumerKey, cfg.WCConsumerSecret,
		woocommerce.WithLogger(ac.Logger))
}

func (ac *AppContext) metaWriterFactory(cfg *settings.RuntimeConfig) product.MetaWriter {
	return ac.wpClient(cfg)
}

func (ac *AppContext) modelFactory(cfg *settings.RuntimeConfig) (textmodel.Generator, error) {
	return ac.modelClient(cfg)
}

func (ac *AppContext) modelClient(cfg *settings.RuntimeConfig) (*textmodel.MultiKeyClient, error) {
	return textmodel.NewMultiKeyClient(
		gemini.Factory,
		cfg.ModelAPIKeys,
		cfg.ModelName,
		textmodel.WithModelStore(ac.SettingsRepo),
		textmodel.WithLogger(ac.Logger),
	)
}

// listPosts はTTLキャッシュ越しに全投稿を取得する
// シグネチャに認証情報の同一性とページング条件を含め、
// 設定変更後に古いサイトの一覧を返さないようにする
func (ac *AppContext) listPosts(ctx context.Context, cfg *settings.RuntimeConfig, force bool) ([]post.Post, error) {
	signature := listcache.Signature(
		cfg.WPBaseURL,
		cfg.WPUsername,
		strconv.Itoa(cfg.MaxPages),
		strconv.Itoa(ac.Config.FetchPerPage),
	)
	return ac.PostCache.Get(ctx, signature, force, func(ctx context.Context) ([]post.Post, error) {
		return ac.wpClient(cfg).ListAllPosts(ctx, ac.Config.FetchPerPage, cfg.MaxPages)
	})
}
