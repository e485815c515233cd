package post

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/genlog"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
)

// inboundLinkCount は1記事あたりに埋め込む内部リンク数
const inboundLinkCount = 2

// codeAlreadyFilled は冪等ガードで処理を省略した際にステータス行へ残す短縮コード
const codeAlreadyFilled = "already_filled"

// Post はCMS側の投稿エンティティ
type Post struct {
	ID          int64
	Title       string
	ContentHTML string
	Link        string
}

// Update は投稿の公開更新内容
type Update struct {
	ContentHTML     string
	MetaTitle       string
	MetaDescription string
	TagIDs          []int64
	UseExcerpt      bool
	MetaTitleKey    string
	MetaDescKey     string
}

// ContentAPI はCMS（WordPress）コラボレータの契約
type ContentAPI interface {
	GetPost(ctx context.Context, id int64) (*Post, error)

	// UpdatePost は本文・メタ・タグを書き込み、投稿を公開状態にする
	UpdatePost(ctx context.Context, id int64, update Update) error

	// FindOrCreateTag はタグ名をIDへ解決する
	// CMSがタグを不正として拒否した場合（400系）は (0, nil) を返し、
	// 呼び出し側はそのタグを読み飛ばす
	FindOrCreateTag(ctx context.Context, name string) (int64, error)
}

// Invalidator は一覧キャッシュの明示的な無効化
type Invalidator interface {
	Invalidate()
}

// CMSFactory は実行設定からCMSクライアントを構築する
type CMSFactory func(cfg *settings.RuntimeConfig) ContentAPI

// ModelFactory は実行設定から生成クライアントを構築する
type ModelFactory func(cfg *settings.RuntimeConfig) (textmodel.Generator, error)

// Service は投稿生成パイプライン
//
// 資格情報のローテーションを即時反映するため、CMS/モデルクライアントは
// 実行のたびに新しい RuntimeConfig から構築される
type Service struct {
	store        status.Store
	settingsRepo settings.Repository
	logRepo      genlog.Repository
	cache        Invalidator
	cmsFactory   CMSFactory
	modelFactory ModelFactory
	logger       *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithServiceLogger はロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい投稿生成サービスを作成する
func NewService(
	store status.Store,
	settingsRepo settings.Repository,
	logRepo genlog.Repository,
	cache Invalidator,
	cmsFactory CMSFactory,
	modelFactory ModelFactory,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:        store,
		settingsRepo: settingsRepo,
		logRepo:      logRepo,
		cache:        cache,
		cmsFactory:   cmsFactory,
		modelFactory: modelFactory,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process は1件の投稿を処理し、失敗時はステータスを error に遷移させる
// ワーカープールのタスクとして実行されることを想定している
func (s *Service) Process(ctx context.Context, id int64) {
	canceled, err := s.isCanceled(ctx, id)
	if err != nil {
		s.logger.Error("failed to read cancellation flag", "post_id", id, "error", err)
		return
	}
	if canceled {
		return
	}

	if err := s.store.Upsert(ctx, id, status.KindPost, status.StateProcessing, ""); err != nil {
		s.logger.Error("failed to mark post processing", "post_id", id, "error", err)
		return
	}

	if err := s.Run(ctx, id); err != nil {
		s.logger.Error("post generation failed", "post_id", id, "error", err)
		if uerr := s.store.Upsert(ctx, id, status.KindPost, status.StateError, status.CompactError(err)); uerr != nil {
			s.logger.Error("failed to mark post error", "post_id", id, "error", uerr)
		}
	}
}

// Run は生成パイプラインを1回実行する
// 各ステップの間でキャンセルフラグを確認し、観測した時点で
// 追加の副作用なしに打ち切る（コミット済みの副作用はそのまま残る）
func (s *Service) Run(ctx context.Context, id int64) error {
	cfg, err := settings.Load(ctx, s.settingsRepo)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cms := s.cmsFactory(cfg)
	model, err := s.modelFactory(cfg)
	if err != nil {
		return err
	}

	current, err := cms.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch post %d: %w", id, err)
	}

	// 冪等ガード: 既に本文がある投稿は再生成しない
	if !IsEmptyContent(current.ContentHTML) {
		s.logger.Info("post already has content, skipping", "post_id", id)
		return s.store.Upsert(ctx, id, status.KindPost, status.StateDone, codeAlreadyFilled)
	}

	if canceled, err := s.isCanceled(ctx, id); err != nil || canceled {
		return err
	}

	links := PickInboundLinks(cfg.InboundLinks, inboundLinkCount)
	prompt := BuildPrompt(current.Title, links, cfg.CustomPrompt)

	responseText, err := model.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	payload, responseText, err := s.extractWithRepair(ctx, model, prompt, responseText)
	if err != nil {
		return err
	}

	if !payload.HasAllMetadata() {
		if err := s.backfillMetadata(ctx, model, current.Title, &payload); err != nil {
			return err
		}
	}

	if canceled, err := s.isCanceled(ctx, id); err != nil || canceled {
		return err
	}

	if payload.ContentHTML == "" {
		return status.NewError(status.KindBadOutput, "model returned empty content")
	}

	tagIDs, err := s.resolveTags(ctx, cms, payload.Tags)
	if err != nil {
		return err
	}

	if canceled, err := s.isCanceled(ctx, id); err != nil || canceled {
		return err
	}

	update := Update{
		ContentHTML:     payload.ContentHTML,
		MetaTitle:       payload.MetaTitle,
		MetaDescription: payload.MetaDescription,
		TagIDs:          tagIDs,
		UseExcerpt:      cfg.UseExcerptForMetaDescription,
		MetaTitleKey:    cfg.MetaTitleKey,
		MetaDescKey:     cfg.MetaDescriptionKey,
	}
	if err := cms.UpdatePost(ctx, id, update); err != nil {
		return fmt.Errorf("failed to update post %d: %w", id, err)
	}

	s.cache.Invalidate()

	entry := genlog.Entry{
		EntityID:        id,
		EntityKind:      status.KindPost,
		Prompt:          prompt,
		Response:        responseText,
		MetaTitle:       payload.MetaTitle,
		MetaDescription: payload.MetaDescription,
		Tags:            payload.Tags,
	}
	if err := s.logRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append generation log: %w", err)
	}

	return s.store.Upsert(ctx, id, status.KindPost, status.StateDone, "")
}

// extractWithRepair は応答の構造化抽出を試み、失敗時に1回だけ修復プロンプトを発行する
// 2回目の失敗は致命的
func (s *Service) extractWithRepair(ctx context.Context, model textmodel.Generator, basePrompt, responseText string) (Payload, string, error) {
	payload, err := ExtractPayload(responseText)
	if err == nil {
		return payload, responseText, nil
	}

	s.logger.Warn("model response failed structured extraction, issuing repair prompt")
	repaired, gerr := model.Generate(ctx, BuildRepairPrompt(basePrompt, responseText))
	if gerr != nil {
		return Payload{}, "", gerr
	}

	payload, err = ExtractPayload(repaired)
	if err != nil {
		return Payload{}, "", err
	}
	return payload, repaired, nil
}

// backfillMetadata は不足しているメタデータのみを二次プロンプトで補完する
func (s *Service) backfillMetadata(ctx context.Context, model textmodel.Generator, title string, payload *Payload) error {
	prompt := BuildMetadataPrompt(title, payload.ContentHTML)
	responseText, err := model.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	metadata, _, err := s.extractWithRepair(ctx, model, prompt, responseText)
	if err != nil {
		return err
	}

	payload.MergeMissing(metadata)
	return nil
}

// resolveTags はタグ名をCMS側IDへ解決する
// CMSに不正として拒否されたタグは読み飛ばし、それ以外のエラーは致命的
func (s *Service) resolveTags(ctx context.Context, cms ContentAPI, tags []string) ([]int64, error) {
	var ids []int64
	for _, tag := range tags {
		name := NormalizeTagName(tag)
		if name == "" {
			continue
		}
		id, err := cms.FindOrCreateTag(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		if id == 0 {
			s.logger.Warn("tag rejected by CMS, skipping", "tag", name)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// isCanceled はエンティティのキャンセルフラグを確認する
func (s *Service) isCanceled(ctx context.Context, id int64) (bool, error) {
	row, err := s.store.Get(ctx, id, status.KindPost)
	if err != nil {
		return false, err
	}
	if entity, ok := row.Get(); ok {
		return entity.Status == status.StateCanceled, nil
	}
	return false, nil
}

// Cancel は投稿の生成をキャンセル状態にする
// 実行中のパイプラインは次のステップ境界でこのフラグを観測して打ち切る
func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.store.Upsert(ctx, id, status.KindPost, status.StateCanceled, "")
}
