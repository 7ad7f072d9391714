package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func successUpdate(url, name string) models.ScrapeUpdate {
	return models.ScrapeUpdate{
		SourceURL:  url,
		SourceName: "generic",
		RawName:    name,
		RawImages:  []string{"https://img.example/a.jpg"},
		Status:     models.ScrapeSuccess,
		ScrapedAt:  time.Now(),
	}
}

func TestUpsertScrape_SameURLKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.UpsertScrape(ctx, successUpdate("https://shop.example/p/1", "Bowl"))
	require.NoError(t, err)
	second, err := s.UpsertScrape(ctx, successUpdate("https://shop.example/p/1", "Bowl v2"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Bowl v2", second.RawName)

	rows, err := s.ListScrapedProducts(ctx, ScrapedFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpsertScrape_ConcurrentSameURL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpsertScrape(ctx, successUpdate("https://shop.example/p/1", "Bowl"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := s.ListScrapedProducts(ctx, ScrapedFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpsertScrape_FailureKeepsRawAndImageState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	row, err := s.UpsertScrape(ctx, successUpdate("https://shop.example/p/1", "Bowl"))
	require.NoError(t, err)
	require.NoError(t, s.SetImageState(ctx, row.ID, models.ImagesUploaded, []string{"https://cdn.example/products/x.jpg"}))
	require.NoError(t, s.MarkSentToCuration(ctx, row.ID, "draft-1"))

	failed, err := s.UpsertScrape(ctx, models.ScrapeUpdate{
		SourceURL:    "https://shop.example/p/1",
		SourceName:   "generic",
		Status:       models.ScrapeFailed,
		ErrorMessage: "HTTP 503",
		ScrapedAt:    time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.ScrapeFailed, failed.ScrapeStatus)
	assert.Equal(t, "HTTP 503", failed.ErrorMessage)
	assert.Equal(t, "Bowl", failed.RawName)
	assert.Equal(t, []string{"https://img.example/a.jpg"}, failed.RawImages)
	assert.Equal(t, models.ImagesUploaded, failed.ImageUploadStatus)
	assert.Equal(t, []string{"https://cdn.example/products/x.jpg"}, failed.UploadedImageURLs)
	assert.True(t, failed.SentToCuration)
	assert.Equal(t, "draft-1", failed.DraftID)
}

func TestMarkSentToCuration_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	row, err := s.UpsertScrape(ctx, successUpdate("https://shop.example/p/1", "Bowl"))
	require.NoError(t, err)

	require.NoError(t, s.MarkSentToCuration(ctx, row.ID, "draft-1"))
	err = s.MarkSentToCuration(ctx, row.ID, "draft-2")
	assert.ErrorIs(t, err, ErrAlreadySent)

	got, err := s.GetScrapedProduct(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft-1", got.DraftID)

	assert.ErrorIs(t, s.MarkSentToCuration(ctx, "missing", "d"), ErrNotFound)
}

func TestListScrapedProducts_Filters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, _ := s.UpsertScrape(ctx, successUpdate("https://shop.example/a", "A"))
	_, _ = s.UpsertScrape(ctx, successUpdate("https://shop.example/b", "B"))
	_, _ = s.UpsertScrape(ctx, models.ScrapeUpdate{SourceURL: "https://shop.example/c", Status: models.ScrapeFailed})
	require.NoError(t, s.MarkSentToCuration(ctx, a.ID, "d"))

	notSent := false
	rows, err := s.ListScrapedProducts(ctx, ScrapedFilter{Status: models.ScrapeSuccess, SentToCuration: &notSent})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B", rows[0].RawName)
}

func TestDrafts_ListOldestFirstWithStatusFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateDraft(ctx, &models.ProductDraft{RawName: name, Status: models.DraftPendingTranslation}))
	}
	require.NoError(t, s.CreateDraft(ctx, &models.ProductDraft{RawName: "done", Status: models.DraftPublished}))

	got, err := s.ListDrafts(ctx, []models.DraftStatus{models.DraftPendingTranslation}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].RawName)
	assert.Equal(t, "second", got[1].RawName)

	all, err := s.ListDrafts(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateDraft_MutateErrorLeavesDraftUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := &models.ProductDraft{RawName: "Bowl", Status: models.DraftPendingTranslation}
	require.NoError(t, s.CreateDraft(ctx, d))

	boom := errors.New("boom")
	_, err := s.UpdateDraft(ctx, d.ID, func(d *models.ProductDraft) error {
		d.Status = models.DraftTranslating
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftPendingTranslation, got.Status)

	_, err = s.UpdateDraft(ctx, "missing", func(*models.ProductDraft) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDraft_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := &models.ProductDraft{RawName: "Bowl", RawImages: []string{"a"}, Status: models.DraftPendingTranslation}
	require.NoError(t, s.CreateDraft(ctx, d))

	updated, err := s.UpdateDraft(ctx, d.ID, func(d *models.ProductDraft) error {
		d.Status = models.DraftTranslating
		return nil
	})
	require.NoError(t, err)
	updated.RawImages[0] = "mutated"

	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftTranslating, got.Status)
	assert.Equal(t, []string{"a"}, got.RawImages)
}

func TestCountDraftsByStatus_IncludesZeroes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateDraft(ctx, &models.ProductDraft{Status: models.DraftInReview}))
	require.NoError(t, s.CreateDraft(ctx, &models.ProductDraft{Status: models.DraftInReview}))

	counts, err := s.CountDraftsByStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, len(models.AllDraftStatuses))
	assert.Equal(t, 2, counts[models.DraftInReview])
	assert.Equal(t, 0, counts[models.DraftPublished])
}

func TestCatalog_OneProductPerDraft(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p, err := s.CreateProduct(ctx, models.ProductInput{SourceDraftID: "d1", Name: "Bowl", Price: models.CentsToPrice(1999)})
	require.NoError(t, err)
	assert.Equal(t, "19.99", p.Price.StringFixed(2))

	_, err = s.CreateProduct(ctx, models.ProductInput{SourceDraftID: "d1", Name: "Bowl"})
	assert.ErrorIs(t, err, ErrConflict)

	found, err := s.FindProductByDraftID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	_, err = s.FindProductByDraftID(ctx, "d2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecimal128Conversion(t *testing.T) {
	price := models.CentsToPrice(4550)
	d128, err := toDecimal128(price)
	require.NoError(t, err)

	doc := productDocument{ID: "p", Price: d128}
	p, err := doc.toModel()
	require.NoError(t, err)
	assert.True(t, price.Equal(p.Price))
}

func TestReviews_PendingTranslationLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AddReviews(ctx, []models.ScrapedReview{
		{ID: "a", ScrapedProductID: "sp1", Text: "first", Images: []string{"https://img.example/a.jpg"}},
		{ID: "b", ScrapedProductID: "sp1", Text: "second"},
		{ID: "c", ScrapedProductID: "sp2", Text: "third", TranslationStatus: models.ReviewTranslated},
	}))

	pending, err := s.ListPendingReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, models.ReviewPending, pending[0].TranslationStatus)

	require.NoError(t, s.SetReviewTranslation(ctx, "a", models.ReviewFailed, "", "boom"))
	require.NoError(t, s.SetReviewTranslation(ctx, "b", models.ReviewTranslated, "deuxième", "ignored"))
	require.NoError(t, s.SetReviewImages(ctx, "a", []string{"https://cdn.example/a.jpg"}))

	pending, err = s.ListPendingReviews(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	reviews, err := s.ListReviews(ctx, "sp1")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "boom", reviews[0].TranslationError)
	assert.Equal(t, []string{"https://cdn.example/a.jpg"}, reviews[0].Photos())
	assert.Equal(t, "deuxième", reviews[1].DisplayText())
	assert.Empty(t, reviews[1].TranslationError)

	assert.ErrorIs(t, s.SetReviewImages(ctx, "missing", nil), ErrNotFound)
}
