package product

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
)

// Mode は商品リライトの実行対象
type Mode string

const (
	ModeTitle       Mode = "title"
	ModeDescription Mode = "description"
	ModeBoth        Mode = "both"
)

// defaultFocusKeywordKey はSEOプラグインのフォーカスキーワード用メタキー
const defaultFocusKeywordKey = "yoast_wpseo_focuskw"

// correctionRetries はサブタスク1つあたりの修正リプロンプト上限
const correctionRetries = 2

// Product はコマースAPI側の商品エンティティ
type Product struct {
	ID              int64
	Name            string
	DescriptionHTML string
	Slug            string
	Categories      []string
	Meta            map[string]string
	CreatedAt       time.Time
}

// Update は商品の部分更新。nil のフィールドは書き込まない
type Update struct {
	Name            *string
	DescriptionHTML *string
	Slug            *string
	Meta            map[string]string
}

// ListQuery は作成日で絞り込むページング付き一覧取得の条件
type ListQuery struct {
	Page          int
	PerPage       int
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// CommerceAPI はコマース（WooCommerce）コラボレータの契約
type CommerceAPI interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, update Update) error

	// ListProductsPage は1ページ分の商品と総ページ数を返す
	ListProductsPage(ctx context.Context, query ListQuery) ([]Product, int, error)
}

// MetaWriter はコマースAPI経由でメタが書けなかった場合の
// 二次メタ書き込みエンドポイント（CMS側）
type MetaWriter interface {
	UpdatePostMeta(ctx context.Context, id int64, meta map[string]string) error
}

// CommerceFactory は実行設定からコマースクライアントを構築する
type CommerceFactory func(cfg *settings.RuntimeConfig) CommerceAPI

// MetaWriterFactory は実行設定から二次メタ書き込みクライアントを構築する
type MetaWriterFactory func(cfg *settings.RuntimeConfig) MetaWriter

// ModelFactory は実行設定から生成クライアントを構築する
type ModelFactory func(cfg *settings.RuntimeConfig) (textmodel.Generator, error)

// Service は商品リライトパイプライン
//
// 4つのサブタスク（タイトル・説明文・SEO・スラッグ）は独立に完了し、
// 失敗は各サブタスクのフラグとエラー欄に隔離される
type Service struct {
	store           status.Store
	settingsRepo    settings.Repository
	commerceFactory CommerceFactory
	metaFactory     MetaWriterFactory
	modelFactory    ModelFactory
	logger          *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithServiceLogger はロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい商品リライトサービスを作成する
func NewService(
	store status.Store,
	settingsRepo settings.Repository,
	commerceFactory CommerceFactory,
	metaFactory MetaWriterFactory,
	modelFactory ModelFactory,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:           store,
		settingsRepo:    settingsRepo,
		commerceFactory: commerceFactory,
		metaFactory:     metaFactory,
		modelFactory:    modelFactory,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// subResult は1サブタスクの実行結果
type subResult struct {
	requested bool
	skipped   bool // 既に done フラグが立っていた
	done      bool
	err       error
}

func (r subResult) failed() bool {
	return r.requested && !r.skipped && !r.done
}

// Rewrite は1商品のリライトを実行し、最終ステータスを書き込む
//
// モードごとの対象サブタスク:
//   - title:       タイトル、スラッグ、SEO（いずれも確定タイトルから導出）
//   - description: 説明文のみ
//   - both:        4サブタスクすべて
//
// 単一モードの実行では既に完了しているサブタスクを再実行しない。
// both は全サブタスクをやり直す（明示的な全体リライト要求とみなす）
func (s *Service) Rewrite(ctx context.Context, id int64, mode Mode) error {
	cfg, err := settings.Load(ctx, s.settingsRepo)
	if err != nil {
		return s.fail(ctx, id, err)
	}
	if err := cfg.Validate(); err != nil {
		return s.fail(ctx, id, err)
	}

	commerce := s.commerceFactory(cfg)
	model, err := s.modelFactory(cfg)
	if err != nil {
		return s.fail(ctx, id, err)
	}

	current, err := commerce.GetProduct(ctx, id)
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("failed to fetch product %d: %w", id, err))
	}

	var existing status.Entity
	if row, gerr := s.store.Get(ctx, id, status.KindProduct); gerr != nil {
		return s.fail(ctx, id, gerr)
	} else if e, ok := row.Get(); ok {
		existing = e
	}

	storeRelated := IsStoreRelated(current.Name)
	skipDone := mode != ModeBoth

	wantTitle := mode == ModeTitle || mode == ModeBoth
	wantDesc := mode == ModeDescription || mode == ModeBoth
	wantSEO := mode == ModeTitle || mode == ModeBoth
	wantSlug := mode == ModeTitle || mode == ModeBoth

	var title, desc, seo, slug subResult
	update := Update{}
	flagUpdate := status.FlagUpdate{}

	// タイトル。以降のスラッグ/SEOは確定タイトルから導出するため最初に実行する
	finalTitle := current.Name
	title.requested = wantTitle
	if wantTitle {
		if skipDone && existing.Flags.Title {
			title.skipped = true
			if existing.LastTitle != "" {
				finalTitle = existing.LastTitle
			}
		} else if value, terr := s.rewriteTitle(ctx, model, current.Name, storeRelated); terr != nil {
			title.err = terr
			flagUpdate.TitleDone = status.Bool(false)
			flagUpdate.TitleError = status.String(status.CompactError(terr))
			s.logger.Warn("title sub-task failed", "product_id", id, "error", terr)
		} else {
			title.done = true
			finalTitle = value
			update.Name = &value
			flagUpdate.TitleDone = status.Bool(true)
			flagUpdate.TitleError = status.String("")
			flagUpdate.LastTitle = status.String(value)
		}
	}

	// 説明文
	desc.requested = wantDesc
	if wantDesc {
		if skipDone && existing.Flags.Description {
			desc.skipped = true
		} else if value, derr := s.rewriteDescription(ctx, model, finalTitle, storeRelated); derr != nil {
			desc.err = derr
			flagUpdate.DescriptionDone = status.Bool(false)
			flagUpdate.DescriptionError = status.String(status.CompactError(derr))
			s.logger.Warn("description sub-task failed", "product_id", id, "error", derr)
		} else {
			desc.done = true
			update.DescriptionHTML = &value
			flagUpdate.DescriptionDone = status.Bool(true)
			flagUpdate.DescriptionError = status.String("")
		}
	}

	// SEO。モデル失敗時は確定タイトルから導出するため、ここでは常に成功する
	seo.requested = wantSEO
	var seoFields seoPayload
	if wantSEO {
		if skipDone && existing.Flags.SEO {
			seo.skipped = true
		} else {
			seoFields = s.rewriteSEO(ctx, model, finalTitle, storeRelated)
			seo.done = true
			update.Meta = map[string]string{
				cfg.MetaTitleKey:       seoFields.MetaTitle,
				cfg.MetaDescriptionKey: seoFields.MetaDescription,
				defaultFocusKeywordKey: seoFields.FocusKeyword,
			}
			flagUpdate.SEODone = status.Bool(true)
			flagUpdate.SEOError = status.String("")
			flagUpdate.LastMetaTitle = status.String(seoFields.MetaTitle)
			flagUpdate.LastMetaDescription = status.String(seoFields.MetaDescription)
			flagUpdate.LastFocusKeyword = status.String(seoFields.FocusKeyword)
		}
	}

	// スラッグ。決定的な導出なので失敗は空結果のみ
	slug.requested = wantSlug
	if wantSlug {
		if skipDone && existing.Flags.Slug {
			slug.skipped = true
		} else if value := Slugify(finalTitle); value == "" {
			slug.err = status.NewError(status.KindValidation, "slug derivation produced empty result for %q", finalTitle)
			flagUpdate.SlugDone = status.Bool(false)
			flagUpdate.SlugError = status.String(status.CompactError(slug.err))
		} else {
			slug.done = true
			update.Slug = &value
			flagUpdate.SlugDone = status.Bool(true)
			flagUpdate.SlugError = status.String("")
			flagUpdate.LastSlug = status.String(value)
		}
	}

	// 全サブタスクが失敗した実行はエンティティ全体のエラー
	results := []subResult{title, desc, seo, slug}
	if allFailed(results) {
		firstErr := firstError(results)
		if err := s.store.SetFlags(ctx, id, status.KindProduct, flagUpdate); err != nil {
			return err
		}
		return s.fail(ctx, id, firstErr)
	}

	// 永続化と検証
	if hasChanges(update) {
		if err := commerce.UpdateProduct(ctx, id, update); err != nil {
			return s.fail(ctx, id, fmt.Errorf("failed to update product %d: %w", id, err))
		}

		if len(update.Meta) > 0 {
			if verr := s.verifyMeta(ctx, commerce, s.metaFactory(cfg), id, update.Meta); verr != nil {
				seo.done = false
				seo.err = verr
				flagUpdate.SEODone = status.Bool(false)
				flagUpdate.SEOError = status.String(status.CompactError(verr))
				s.logger.Warn("meta verification failed after fallback write", "product_id", id, "error", verr)
			}
		}
	}

	if err := s.store.SetFlags(ctx, id, status.KindProduct, flagUpdate); err != nil {
		return err
	}

	// 最終ステータスはマージ後のフラグから導出する
	merged := mergeFlags(existing.Flags, flagUpdate)
	final := status.Derive("", merged)
	code := ""
	if err := firstError(results); err != nil {
		code = status.CompactError(err)
	}
	return s.store.Upsert(ctx, id, status.KindProduct, final, code)
}

// rewriteTitle はタイトルを生成し、長さと禁止語を検証する
// 不合格なら直前の値と長さを引用した修正プロンプトを上限回数まで発行する
func (s *Service) rewriteTitle(ctx context.Context, model textmodel.Generator, originalTitle string, storeRelated bool) (string, error) {
	prompt := buildTitlePrompt(originalTitle)
	var value string
	for attempt := 0; attempt <= correctionRetries; attempt++ {
		raw, err := model.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}

		value = Sanitize(firstLine(raw), storeRelated)
		if validateTitle(value) == nil {
			return value, nil
		}
		prompt = buildTitleCorrectionPrompt(originalTitle, value)
	}
	return "", status.NewError(status.KindValidation,
		"title still invalid after %d corrections (last: %q, %d chars)", correctionRetries, value, len(value))
}

func validateTitle(value string) error {
	if n := len(value); n < titleMinChars || n > titleMaxChars {
		return status.NewError(status.KindValidation, "title length %d outside %d-%d", n, titleMinChars, titleMaxChars)
	}
	if ContainsBannedWord(value) {
		return status.NewError(status.KindValidation, "title contains banned word")
	}
	return nil
}

// rewriteDescription は本文を生成し、定型フッターを付加して語数を検証する
func (s *Service) rewriteDescription(ctx context.Context, model textmodel.Generator, title string, storeRelated bool) (string, error) {
	prompt := buildDescriptionPrompt(title)
	var assembled string
	var words int
	for attempt := 0; attempt <= correctionRetries; attempt++ {
		raw, err := model.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}

		body := Sanitize(raw, storeRelated)
		assembled = body + "\n" + descriptionFooter

		if !strings.Contains(assembled, RequiredFooterLink) {
			return "", status.NewError(status.KindValidation, "assembled description is missing required link")
		}

		words = CountWords(assembled)
		if words >= descriptionMinWords && words <= descriptionMaxWords {
			return assembled, nil
		}
		prompt = buildDescriptionCorrectionPrompt(title, body, words)
	}
	return "", status.NewError(status.KindValidation,
		"description word count %d outside %d-%d after %d corrections", words, descriptionMinWords, descriptionMaxWords, correctionRetries)
}

// rewriteSEO はSEOメタを生成する。モデル呼び出しや抽出の失敗は
// タイトル由来のフォールバックに切り替え、結果は常に範囲内へ丸める
func (s *Service) rewriteSEO(ctx context.Context, model textmodel.Generator, title string, storeRelated bool) seoPayload {
	payload := fallbackSEO(title)

	raw, err := model.Generate(ctx, buildSEOPrompt(title))
	if err != nil {
		s.logger.Warn("SEO generation failed, using title-derived fallback", "error", err)
	} else if extracted, perr := extractSEOPayload(raw); perr != nil {
		s.logger.Warn("SEO response extraction failed, using title-derived fallback", "error", perr)
	} else {
		if extracted.MetaTitle != "" {
			payload.MetaTitle = extracted.MetaTitle
		}
		if extracted.MetaDescription != "" {
			payload.MetaDescription = extracted.MetaDescription
		}
		if extracted.FocusKeyword != "" {
			payload.FocusKeyword = extracted.FocusKeyword
		}
	}

	payload.MetaTitle = ClampField(Sanitize(payload.MetaTitle, storeRelated),
		metaTitleMinChars, metaTitleMaxChars, "premium digital download")
	payload.MetaDescription = ClampField(Sanitize(payload.MetaDescription, storeRelated),
		metaDescMinChars, metaDescMaxChars, "instant download with lifetime updates and dedicated support")
	payload.FocusKeyword = Sanitize(payload.FocusKeyword, storeRelated)
	if payload.FocusKeyword == "" {
		payload.FocusKeyword = fallbackKeyword(title)
	}
	return payload
}

func fallbackSEO(title string) seoPayload {
	return seoPayload{
		MetaTitle:       title,
		MetaDescription: fmt.Sprintf("Get %s at a discounted price. Instant download, regular updates, and simple installation for your site.", title),
		FocusKeyword:    fallbackKeyword(title),
	}
}

// fallbackKeyword はタイトルの先頭3語をフォーカスキーワードにする
func fallbackKeyword(title string) string {
	words := strings.Fields(strings.ToLower(title))
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}

// verifyMeta は再取得でメタキーの存在を確認し、欠けていれば
// 二次エンドポイントで1回だけ書き直して再検証する
func (s *Service) verifyMeta(ctx context.Context, commerce CommerceAPI, metaWriter MetaWriter, id int64, meta map[string]string) error {
	missing, err := s.missingMetaKeys(ctx, commerce, id, meta)
	if err != nil {
		return status.WrapError(status.KindVerify, err, "failed to re-fetch product for verification")
	}
	if len(missing) == 0 {
		return nil
	}

	s.logger.Info("meta keys missing after commerce write, using fallback endpoint",
		"product_id", id, "missing", missing)
	if err := metaWriter.UpdatePostMeta(ctx, id, meta); err != nil {
		return status.WrapError(status.KindVerify, err, "fallback meta write failed")
	}

	missing, err = s.missingMetaKeys(ctx, commerce, id, meta)
	if err != nil {
		return status.WrapError(status.KindVerify, err, "failed to re-fetch product after fallback write")
	}
	if len(missing) > 0 {
		return status.NewError(status.KindVerify, "meta keys still missing after fallback write: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) missingMetaKeys(ctx context.Context, commerce CommerceAPI, id int64, meta map[string]string) ([]string, error) {
	fetched, err := commerce.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	var missing []string
	for key := range meta {
		if _, ok := fetched.Meta[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing, nil
}

// fail はエンティティを error 状態へ遷移させてエラーを返す
func (s *Service) fail(ctx context.Context, id int64, err error) error {
	if uerr := s.store.Upsert(ctx, id, status.KindProduct, status.StateError, status.CompactError(err)); uerr != nil {
		s.logger.Error("failed to mark product error", "product_id", id, "error", uerr)
	}
	return err
}

func allFailed(results []subResult) bool {
	attempted := false
	for _, r := range results {
		if r.requested && !r.skipped {
			attempted = true
			if r.done {
				return false
			}
		}
	}
	return attempted
}

func firstError(results []subResult) error {
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func hasChanges(u Update) bool {
	return u.Name != nil || u.DescriptionHTML != nil || u.Slug != nil || len(u.Meta) > 0
}

func mergeFlags(existing status.Flags, update status.FlagUpdate) status.Flags {
	merged := existing
	if update.TitleDone != nil {
		merged.Title = *update.TitleDone
	}
	if update.DescriptionDone != nil {
		merged.Description = *update.DescriptionDone
	}
	if update.SEODone != nil {
		merged.SEO = *update.SEODone
	}
	if update.SlugDone != nil {
		merged.Slug = *update.SlugDone
	}
	return merged
}
