package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/settings"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/status"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/statustest"
	"github.com/nasratulnayem/wordpress-blog-automation/internal/core/textmodel"
)

type stubSettingsRepo struct {
	values map[string]string
}

func (r *stubSettingsRepo) Get(ctx context.Context, key string) (mo.Option[string], error) {
	if v, ok := r.values[key]; ok {
		return mo.Some(v), nil
	}
	return mo.None[string](), nil
}

func (r *stubSettingsRepo) GetAll(ctx context.Context) (map[string]string, error) {
	return r.values, nil
}

func (r *stubSettingsRepo) Set(ctx context.Context, updates map[string]string) error {
	for k, v := range updates {
		r.values[k] = v
	}
	return nil
}

func validSettingsRepo() *stubSettingsRepo {
	return &stubSettingsRepo{values: map[string]string{
		settings.KeyWPBaseURL:     "https://example.com",
		settings.KeyWPUsername:    "admin",
		settings.KeyWPAppPassword: "secret",
		settings.KeyModelAPIKeys:  "k1",
		settings.KeyBulkItemDelay: "1",
	}}
}

type stubCommerce struct {
	products map[int64]*Product

	// persistMeta が false のときコマースAPI経由のメタ書き込みを黙って落とす
	// （検証フォールバック経路のテスト用）
	persistMeta bool

	updates   []Update
	pages     [][]Product
	listCalls int
	onList    func(page int)
}

func (c *stubCommerce) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d not found", id)
	}
	clone := *p
	clone.Meta = make(map[string]string, len(p.Meta))
	for k, v := range p.Meta {
		clone.Meta[k] = v
	}
	return &clone, nil
}

func (c *stubCommerce) UpdateProduct(ctx context.Context, id int64, update Update) error {
	c.updates = append(c.updates, update)
	p, ok := c.products[id]
	if !ok {
		return fmt.Errorf("product %d not found", id)
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.DescriptionHTML != nil {
		p.DescriptionHTML = *update.DescriptionHTML
	}
	if update.Slug != nil {
		p.Slug = *update.Slug
	}
	if c.persistMeta {
		if p.Meta == nil {
			p.Meta = make(map[string]string)
		}
		for k, v := range update.Meta {
			p.Meta[k] = v
		}
	}
	return nil
}

func (c *stubCommerce) ListProductsPage(ctx context.Context, query ListQuery) ([]Product, int, error) {
	c.listCalls++
	if c.onList != nil {
		c.onList(query.Page)
	}
	if query.Page > len(c.pages) {
		return nil, len(c.pages), nil
	}
	return c.pages[query.Page-1], len(c.pages), nil
}

type stubMetaWriter struct {
	target *stubCommerce
	calls  int
	fail   bool
}

func (w *stubMetaWriter) UpdatePostMeta(ctx context.Context, id int64, meta map[string]string) error {
	w.calls++
	if w.fail {
		return errors.New("meta endpoint unavailable")
	}
	p := w.target.products[id]
	if p.Meta == nil {
		p.Meta = make(map[string]string)
	}
	for k, v := range meta {
		p.Meta[k] = v
	}
	return nil
}

type stubGenerator struct {
	responses []string
	errs      []error
	prompts   []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	idx := len(g.prompts) - 1
	if idx < len(g.errs) && g.errs[idx] != nil {
		return "", g.errs[idx]
	}
	if idx >= len(g.responses) {
		return "", errors.New("stub generator exhausted")
	}
	return g.responses[idx], nil
}

func newTestProductService(store status.Store, commerce *stubCommerce, meta *stubMetaWriter, gen *stubGenerator) *Service {
	return NewService(
		store,
		validSettingsRepo(),
		func(cfg *settings.RuntimeConfig) CommerceAPI { return commerce },
		func(cfg *settings.RuntimeConfig) MetaWriter { return meta },
		func(cfg *settings.RuntimeConfig) (textmodel.Generator, error) { return gen, nil },
	)
}

const (
	// 55文字、検証を通るタイトル
	goodTitle = "Astra Pro WordPress Theme Version With Lifetime Updates"

	// 45文字、長さ検証に落ちるタイトル
	shortTitle = "Astra Pro WordPress Theme Latest Version Pack"

	seoResponse = `{
		"meta_title": "Astra Pro WordPress Theme With Premium Site Templates",
		"meta_description": "Download Astra Pro and build fast responsive WordPress sites with premium starter templates, advanced headers, and full WooCommerce integration.",
		"focus_keyword": "astra pro theme"
	}`
)

func goodBody() string {
	return "<p>" + strings.TrimSpace(strings.Repeat("word ", 280)) + "</p>"
}

func TestRewrite_BothModeCompletesAllSubTasks(t *testing.T) {
	ctx := context.Background()
	store := statustest.NewStore()
	commerce := &stubCommerce{
		persistMeta: true,
		products: map[int64]*Product{
			101: {ID: 101, Name: "Astra Pro WordPress Theme"},
		},
	}
	meta := &stubMetaWriter{target: commerce}
	gen := &stubGenerator{responses: []string{goodTitle, goodBody(), seoResponse}}
	svc := newTestProductService(store, commerce, meta, gen)

	err := svc.Rewrite(ctx, 101, ModeBoth)
	require.NoError(t, err)

	require.Len(t, commerce.updates, 1)
	update := commerce.updates[0]
	require.NotNil(t, update.Name)
	assert.Equal(t, goodTitle, *update.Name)

	require.NotNil(t, update.DescriptionHTML)
	assert.Contains(t, *update.DescriptionHTML, RequiredFooterLink)
	words := CountWords(*update.DescriptionHTML)
	assert.GreaterOrEqual(t, words, descriptionMinWords)
	assert.LessOrEqual(t, words, descriptionMaxWords)

	require.NotNil(t, update.Slug)
	assert.NotEmpty(t, *update.Slug)
	assert.LessOrEqual(t, len(*update.Slug), 60)

	metaTitle := update.Meta["yoast_wpseo_title"]
	assert.GreaterOrEqual(t, len(metaTitle), metaTitleMinChars)
	assert.LessOrEqual(t, len(metaTitle), metaTitleMaxChars)
	metaDesc := update.Meta["yoast_wpseo_metadesc"]
	assert.GreaterOrEqual(t, len(metaDesc), metaDescMinChars)
	assert.LessOrEqual(t, len(metaDesc), metaDescMaxChars)
	assert.NotEmpty(t, update.Meta[defaultFocusKeywordKey])

	// コマース経由でメタが永続化されたのでフォールバックは使われない
	assert.Equal(t, 0, meta.calls)

	entity := mustGetProduct(t, store, 101)
	assert.Equal(t, status.StateDone, entity.Derived())
	assert.True(t, entity.Flags.AllDone())
	assert.Equal(t, goodTitle, entity.LastTitle)
}

func TestRewrite_TitleValidationExhaustsCorrections(t *testing.T) {
	ctx := context.Background()
	store := statustest.NewStore()
	commerce := &stubCommerce{
		persistMeta: true,
		products: map[int64]*Product{
			102: {ID: 102, Name: "Astra Pro WordPress Theme"},
		},
	}
	meta := &stubMetaWriter{target: commerce}
	// 45文字のタイトルが3回返り、その後SEOプロンプトに応答する
	gen := &stubGenerator{responses: []string{shortTitle, shortTitle, shortTitle, seoResponse}}
	svc := newTestProductService(store, commerce, meta, gen)

	err := svc.Rewrite(ctx, 102, ModeTitle)
	require.NoError(t, err)

	// 修正プロンプトは直前の値と長さを引用する
	require.GreaterOrEqual(t, len(gen.prompts), 3)
	assert.Contains(t, gen.prompts[1], "45 characters")
	assert.Contains(t, gen.prompts[1], shortTitle)
	assert.Contains(t, gen.prompts[2], "45 characters")

	entity := mustGetProduct(t, store, 102)
	assert.False(t, entity.Flags.Title)
	assert.Equal(t, "validation", entity.TitleError)

	// タイトル失敗は他のサブタスクに波及しない
	assert.True(t, entity.Flags.SEO)
	assert.True(t, entity.Flags.Slug)
	assert.Equal(t, status.StatePartial, entity.Derived())

	// 商品名は書き換えられない
	require.Len(t, commerce.updates, 1)
	assert.Nil(t, commerce.updates[0].Name)
}

func TestRewrite_MetaFallbackWriteRecovers(t *testing.T) {
	ctx := context.Background()
	store := statustest.NewStore()
	commerce := &stubCommerce{
		persistMeta: false, // コマースAPIはメタを保存しない
		products: map[int64]*Product{
			103: {ID: 103, Name: "Astra Pro WordPress Theme"},
		},
	}
	meta := &stubMetaWriter{target: commerce}
	gen := &stubGenerator{responses: []string{goodTitle, goodBody(), seoResponse}}
	svc := newTestProductService(store, commerce, meta, gen)

	err := svc.Rewrite(ctx, 103, ModeBoth)
	require.NoError(t, err)

	assert.Equal(t, 1, meta.calls)

	entity := mustGetProduct(t, store, 103)
	assert.True(t, entity.Flags.SEO)
	assert.Equal(t, status.StateDone, entity.Derived())
}

func TestRewrite_VerifyFailureDowngradesToPartial(t *testing.T) {
	ctx := context.Background()
	store := statustest.NewStore()
	commerce := &stubCommerce{
		persistMeta: false,
		products: map[int64]*Product{
			104: {ID: 104, Name: "Astra Pro WordPress Theme"},
		},
	}
	meta := &stubMetaWriter{target: commerce, fail: true}
	gen := &stubGenerator{responses: []string{goodTitle, goodBody(), seoResponse}}
	svc := newTestProductService(store, commerce, meta, gen)

	err := svc.Rewrite(ctx, 104, ModeBoth)
	require.NoError(t, err)

	entity := mustGetProduct(t, store, 104)
	assert.False(t, entity.Flags.SEO)
	assert.Equal(t, "verify", entity.SEOError)

	// 他の完了済みサブタスクは失われない
	assert.True(t, entity.Flags.Title)
	assert.True(t, entity.Flags.Description)
	assert.True(t, entity.Flags.Slug)
	assert.Equal(t, status.StatePartial, entity.Derived())
}

func TestRewrite_SingleModeSkipsDoneFlags(t *testing.T) {
	ctx := context.Background()
	store := statustest.NewStore()
	store.Seed(status.Entity{
		ID:        105,
		Kind:      status.KindProduct,
		Flags:     status.Flags{Title: true},
		LastTitle: goodTitle,
	})
	commerce := &stubCommerce{
		persistMeta: true,
		products: map[int64]*Product{
			105: {ID: 105, Name: "Astra Pro WordPress Theme"},
		},
	}
	meta := &stubMetaWriter{target: commerce}
	gen := &stubGenerator{responses: []string{seoResponse}}
	svc := newTestProductService(store, commerce, meta, gen)

	err := svc.Rewrite(ctx, 105, ModeTitle)
	require.NoError(t, err)

	// タイトル生成は発行されず、SEOプロンプトだけが出る
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "SEO metadata")

	// スラッグは前回の確定タイトルから導出される
	require.Len(t, commerce.updates, 1)
	require.NotNil(t, commerce.updates[0].Slug)
	assert.Equal(t, Slugify(goodTitle), *commerce.updates[0].Slug)
}

func TestRewrite_AllRequestedFailedMarksError(t *testing.T) {
	ctx := context.Background()
	store := statustest.NewStore()
	commerce := &stubCommerce{
		products: map[int64]*Product{
			106: {ID: 106, Name: "Astra Pro WordPress Theme"},
		},
	}
	meta := &stubMetaWriter{target: commerce}
	gen := &stubGenerator{errs: []error{errors.New("connection reset")}}
	svc := newTestProductService(store, commerce, meta, gen)

	err := svc.Rewrite(ctx, 106, ModeDescription)
	require.Error(t, err)

	entity := mustGetProduct(t, store, 106)
	assert.Equal(t, status.StateError, entity.Status)
	assert.False(t, entity.Flags.Description)
	assert.Empty(t, commerce.updates)
}

func TestRewriteSEO_FallsBackToTitleDerivedFields(t *testing.T) {
	svc := newTestProductService(statustest.NewStore(), &stubCommerce{}, &stubMetaWriter{}, nil)
	gen := &stubGenerator{errs: []error{errors.New("model unavailable")}}

	payload := svc.rewriteSEO(context.Background(), gen, "Astra Pro WordPress Theme", true)

	assert.GreaterOrEqual(t, len(payload.MetaTitle), metaTitleMinChars)
	assert.LessOrEqual(t, len(payload.MetaTitle), metaTitleMaxChars)
	assert.GreaterOrEqual(t, len(payload.MetaDescription), metaDescMinChars)
	assert.LessOrEqual(t, len(payload.MetaDescription), metaDescMaxChars)
	assert.Equal(t, "astra pro wordpress", payload.FocusKeyword)
}

func mustGetProduct(t *testing.T, store *statustest.Store, id int64) status.Entity {
	t.Helper()
	row, err := store.Get(context.Background(), id, status.KindProduct)
	require.NoError(t, err)
	entity, ok := row.Get()
	require.True(t, ok)
	return entity
}
