package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func ptr[T any](v T) *T { return &v }

func approvedDraft(t *testing.T, s *store.MemoryStore) *models.ProductDraft {
	t.Helper()
	d := &models.ProductDraft{
		ScrapedProductID: "sp1",
		RawName:          "Crystal bowl",
		RawImages:        []string{"https://img.example/raw.jpg"},
		UploadedImages:   []string{"https://cdn.example/up.jpg"},
		AIName:           ptr("Bol Cristal"),
		AIDescription:    ptr("Un bol en verre."),
		AICategory:       ptr("bol"),
		AISuggestedPrice: ptr(int64(2990)),
		Status:           models.DraftApproved,
	}
	d.CuratedCompareAtPrice = ptr(int64(3990))
	require.NoError(t, s.CreateDraft(context.Background(), d))
	return d
}

func TestPublishDraft_CreatesProductFromEffectiveValues(t *testing.T) {
	s := store.NewMemoryStore()
	d := approvedDraft(t, s)
	p := New(s, s, s, zaptest.NewLogger(t))

	product, err := p.PublishDraft(context.Background(), d.ID)
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, "Bol Cristal", product.Name)
	assert.Equal(t, "Un bol en verre.", product.Description)
	assert.Equal(t, "bol", product.Category)
	assert.Equal(t, "29.90", product.Price.StringFixed(2))
	require.NotNil(t, product.CompareAtPrice)
	assert.Equal(t, "39.90", product.CompareAtPrice.StringFixed(2))
	assert.Equal(t, []string{"https://cdn.example/up.jpg"}, product.Images)
	assert.True(t, product.InStock)

	got, err := s.GetDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftPublished, got.Status)
	require.NotNil(t, got.PublishedProductID)
	assert.Equal(t, product.ID, *got.PublishedProductID)
	assert.NotNil(t, got.PublishedAt)
}

func TestPublishDraft_OnlyOnce(t *testing.T) {
	s := store.NewMemoryStore()
	d := approvedDraft(t, s)
	p := New(s, s, nil, nil)

	_, err := p.PublishDraft(context.Background(), d.ID)
	require.NoError(t, err)
	_, err = p.PublishDraft(context.Background(), d.ID)
	assert.ErrorIs(t, err, ErrNotApproved)
	assert.Len(t, s.Products(), 1)
}

func TestPublishDraft_RejectsEveryNonApprovedStatus(t *testing.T) {
	s := store.NewMemoryStore()
	p := New(s, s, nil, nil)

	for _, st := range models.AllDraftStatuses {
		if st == models.DraftApproved {
			continue
		}
		d := &models.ProductDraft{RawName: "x", Status: st, AICategory: ptr("bol"), AISuggestedPrice: ptr(int64(100))}
		require.NoError(t, s.CreateDraft(context.Background(), d))

		_, err := p.PublishDraft(context.Background(), d.ID)
		assert.ErrorIs(t, err, ErrNotApproved, st)
	}
	assert.Empty(t, s.Products())
}

func TestPublishDraft_Preconditions(t *testing.T) {
	s := store.NewMemoryStore()
	p := New(s, s, nil, nil)
	ctx := context.Background()

	_, err := p.PublishDraft(ctx, "missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	noCategory := &models.ProductDraft{RawName: "x", RawCategory: ptr("Bowls"), AISuggestedPrice: ptr(int64(100)), Status: models.DraftApproved}
	require.NoError(t, s.CreateDraft(ctx, noCategory))
	_, err = p.PublishDraft(ctx, noCategory.ID)
	assert.ErrorIs(t, err, ErrMissingCategory, "the raw category never publishes")

	noPrice := &models.ProductDraft{RawName: "x", AICategory: ptr("bol"), Status: models.DraftApproved}
	require.NoError(t, s.CreateDraft(ctx, noPrice))
	_, err = p.PublishDraft(ctx, noPrice.ID)
	assert.ErrorIs(t, err, ErrMissingPrice)

	got, err := s.GetDraft(ctx, noPrice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftApproved, got.Status, "failed preconditions leave the draft untouched")
	assert.Empty(t, s.Products())
}

func TestPublishDraft_ReusesProductFromInterruptedAttempt(t *testing.T) {
	s := store.NewMemoryStore()
	d := approvedDraft(t, s)
	existing, err := s.CreateProduct(context.Background(), models.ProductInput{SourceDraftID: d.ID, Name: "Bol Cristal"})
	require.NoError(t, err)

	p := New(s, s, nil, nil)
	product, err := p.PublishDraft(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, existing.ID, product.ID)
	assert.Len(t, s.Products(), 1)
}

type failingCatalog struct {
	*store.MemoryStore
}

func (f failingCatalog) CreateReview(ctx context.Context, r models.CatalogReview) error {
	return errors.New("catalog offline")
}

func TestPublishDraft_CopiesProductReviewsInBackground(t *testing.T) {
	s := store.NewMemoryStore()
	d := approvedDraft(t, s)
	require.NoError(t, s.AddReviews(context.Background(), []models.ScrapedReview{
		{ScrapedProductID: "sp1", Text: "Beautiful glass, great smoke", Rating: 5, AuthorName: "Lea", TranslationStatus: models.ReviewTranslated},
		{ScrapedProductID: "sp1", Text: "Fast delivery", Rating: 5, TranslationStatus: models.ReviewTranslated},
		{ScrapedProductID: "sp1", Text: "", Rating: 4, TranslationStatus: models.ReviewTranslated},
	}))
	p := New(s, s, s, nil)

	product, err := p.PublishDraft(context.Background(), d.ID)
	require.NoError(t, err)
	p.Wait()

	reviews := s.CatalogReviews(product.ID)
	require.Len(t, reviews, 2)
	assert.Equal(t, "Beautiful glass, great smoke", reviews[0].Content)
	assert.Equal(t, "Lea", reviews[0].AuthorName)
	assert.True(t, reviews[0].Verified)
	assert.Equal(t, "⭐", reviews[1].Content)
	assert.Equal(t, defaultReviewAuthor, reviews[1].AuthorName)
}

func TestPublishDraft_ReviewFailureDoesNotFailPublish(t *testing.T) {
	s := store.NewMemoryStore()
	d := approvedDraft(t, s)
	require.NoError(t, s.AddReviews(context.Background(), []models.ScrapedReview{{ScrapedProductID: "sp1", Text: "Lovely", Rating: 5, TranslationStatus: models.ReviewTranslated}}))
	p := New(s, failingCatalog{s}, s, zaptest.NewLogger(t))

	_, err := p.PublishDraft(context.Background(), d.ID)
	require.NoError(t, err)
	p.Wait()
}

func TestPublishDraft_CopiesOnlyTranslatedReviews(t *testing.T) {
	s := store.NewMemoryStore()
	d := approvedDraft(t, s)
	require.NoError(t, s.AddReviews(context.Background(), []models.ScrapedReview{
		{ScrapedProductID: "sp1", Text: "Not yet", Rating: 5},
		{ScrapedProductID: "sp1", Text: "Broken", Rating: 5, TranslationStatus: models.ReviewFailed},
		{
			ScrapedProductID:  "sp1",
			Text:              "Очень красивая чаша",
			TranslatedText:    "Très beau bol",
			TranslationStatus: models.ReviewTranslated,
			Rating:            5,
			Images:            []string{"https://img.example/r.jpg"},
			UploadedImages:    []string{"https://cdn.example/reviews/r.jpg"},
		},
		{
			ScrapedProductID:  "sp1",
			Text:              "Nice",
			TranslatedText:    "Livraison rapide",
			TranslationStatus: models.ReviewTranslated,
			Rating:            4,
		},
	}))
	p := New(s, s, s, zaptest.NewLogger(t))

	product, err := p.PublishDraft(context.Background(), d.ID)
	require.NoError(t, err)
	p.Wait()

	reviews := s.CatalogReviews(product.ID)
	require.Len(t, reviews, 1, "pending, failed and delivery reviews are skipped")
	assert.Equal(t, "Très beau bol", reviews[0].Content)
	assert.Equal(t, []string{"https://cdn.example/reviews/r.jpg"}, reviews[0].Photos)
}

// racingCatalog lets a rival publish win between the lookup and the insert.
type racingCatalog struct {
	*store.MemoryStore
	rival *models.Product
}

func (r *racingCatalog) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if r.rival == nil {
		rival, err := r.MemoryStore.CreateProduct(ctx, in)
		if err != nil {
			return nil, err
		}
		r.rival = rival
	}
	return r.MemoryStore.CreateProduct(ctx, in)
}

func TestPublishDraft_ConcurrentCreateReusesWinner(t *testing.T) {
	s := store.NewMemoryStore()
	d := approvedDraft(t, s)
	catalog := &racingCatalog{MemoryStore: s}
	p := New(s, catalog, nil, zaptest.NewLogger(t))

	product, err := p.PublishDraft(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotNil(t, catalog.rival)
	assert.Equal(t, catalog.rival.ID, product.ID)
	assert.Len(t, s.Products(), 1)

	got, err := s.GetDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftPublished, got.Status)
	assert.Equal(t, catalog.rival.ID, *got.PublishedProductID)
}

func TestAboutDelivery(t *testing.T) {
	assert.True(t, AboutDelivery("Livraison rapide"))
	assert.True(t, AboutDelivery("SHIPPING took ages"))
	assert.False(t, AboutDelivery("Superb ceramic bowl"))
}
