package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/product-sourcing/models"
)

// MemoryStore keeps everything in process memory. It backs tests and local
// runs with STORE_BACKEND=memory.
type MemoryStore struct {
	mu      sync.Mutex
	scraped map[string]*models.ScrapedProduct
	byURL   map[string]string
	reviews map[string][]models.ScrapedReview
	// reviewSeq orders reviews by insertion across products
	reviewSeq map[string]int
	drafts    map[string]*models.ProductDraft
	products  map[string]*models.Product
	catalog   []models.CatalogReview
	now       func() time.Time
}

var (
	_ ScrapedProductStore = (*MemoryStore)(nil)
	_ ReviewStore         = (*MemoryStore)(nil)
	_ DraftStore          = (*MemoryStore)(nil)
	_ CatalogWriter       = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scraped:   make(map[string]*models.ScrapedProduct),
		byURL:     make(map[string]string),
		reviews:   make(map[string][]models.ScrapedReview),
		reviewSeq: make(map[string]int),
		drafts:    make(map[string]*models.ProductDraft),
		products:  make(map[string]*models.Product),
		now:       time.Now,
	}
}

func (m *MemoryStore) UpsertScrape(ctx context.Context, u models.ScrapeUpdate) (*models.ScrapedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id, exists := m.byURL[u.SourceURL]
	var p *models.ScrapedProduct
	if exists {
		p = m.scraped[id]
	} else {
		p = &models.ScrapedProduct{
			ID:                uuid.NewString(),
			SourceURL:         u.SourceURL,
			RawImages:         []string{},
			ImageUploadStatus: models.ImagesPending,
			UploadedImageURLs: []string{},
			CreatedAt:         now,
		}
		m.scraped[p.ID] = p
		m.byURL[u.SourceURL] = p.ID
	}

	p.SourceName = u.SourceName
	if !u.KeepsRawFields() {
		p.ExternalID = u.ExternalID
		p.RawName = u.RawName
		p.RawDescription = u.RawDescription
		p.RawPriceText = u.RawPriceText
		p.RawImages = append([]string{}, u.RawImages...)
		p.RawCategory = u.RawCategory
		p.RawMetadata = u.RawMetadata
	}
	p.ScrapeStatus = u.Status
	p.ErrorMessage = u.ErrorMessage
	p.LastScrapedAt = u.ScrapedAt
	p.UpdatedAt = now

	return copyScraped(p), nil
}

func (m *MemoryStore) GetScrapedProduct(ctx context.Context, id string) (*models.ScrapedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.scraped[id]
	if !ok {
		return nil, fmt.Errorf("scraped product %s: %w", id, ErrNotFound)
	}
	return copyScraped(p), nil
}

func (m *MemoryStore) FindScrapedByURL(ctx context.Context, sourceURL string) (*models.ScrapedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byURL[sourceURL]
	if !ok {
		return nil, fmt.Errorf("scraped product for %s: %w", sourceURL, ErrNotFound)
	}
	return copyScraped(m.scraped[id]), nil
}

func (m *MemoryStore) ListScrapedProducts(ctx context.Context, f ScrapedFilter) ([]models.ScrapedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ScrapedProduct
	for _, p := range m.scraped {
		if f.Status != "" && p.ScrapeStatus != f.Status {
			continue
		}
		if f.SentToCuration != nil && p.SentToCuration != *f.SentToCuration {
			continue
		}
		out = append(out, *copyScraped(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) SetImageState(ctx context.Context, id string, status models.ImageUploadStatus, uploaded []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.scraped[id]
	if !ok {
		return fmt.Errorf("scraped product %s: %w", id, ErrNotFound)
	}
	p.ImageUploadStatus = status
	if uploaded != nil {
		p.UploadedImageURLs = append([]string{}, uploaded...)
	}
	p.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) SetReviewCount(ctx context.Context, id string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.scraped[id]
	if !ok {
		return fmt.Errorf("scraped product %s: %w", id, ErrNotFound)
	}
	p.ReviewCount = count
	return nil
}

func (m *MemoryStore) MarkSentToCuration(ctx context.Context, id, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.scraped[id]
	if !ok {
		return fmt.Errorf("scraped product %s: %w", id, ErrNotFound)
	}
	if p.SentToCuration {
		return ErrAlreadySent
	}
	p.SentToCuration = true
	p.DraftID = draftID
	p.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) ListReviews(ctx context.Context, scrapedProductID string) ([]models.ScrapedReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ScrapedReview, 0, len(m.reviews[scrapedProductID]))
	for _, r := range m.reviews[scrapedProductID] {
		r.Images = append([]string(nil), r.Images...)
		r.UploadedImages = append([]string(nil), r.UploadedImages...)
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) AddReviews(ctx context.Context, reviews []models.ScrapedReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range reviews {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.TranslationStatus == "" {
			r.TranslationStatus = models.ReviewPending
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = m.now()
		}
		r.Images = append([]string(nil), r.Images...)
		m.reviewSeq[r.ID] = len(m.reviewSeq)
		m.reviews[r.ScrapedProductID] = append(m.reviews[r.ScrapedProductID], r)
	}
	return nil
}

func (m *MemoryStore) ListPendingReviews(ctx context.Context, limit int) ([]models.ScrapedReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ScrapedReview
	for _, list := range m.reviews {
		for _, r := range list {
			if r.TranslationStatus == models.ReviewPending {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return m.reviewSeq[out[i].ID] < m.reviewSeq[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SetReviewTranslation(ctx context.Context, id string, status models.ReviewTranslationStatus, translated, errMsg string) error {
	return m.updateReview(id, func(r *models.ScrapedReview) {
		r.TranslationStatus = status
		r.TranslatedText = translated
		r.TranslationError = ""
		if status == models.ReviewFailed {
			r.TranslationError = errMsg
		}
	})
}

func (m *MemoryStore) SetReviewImages(ctx context.Context, id string, uploaded []string) error {
	return m.updateReview(id, func(r *models.ScrapedReview) {
		r.UploadedImages = append([]string{}, uploaded...)
	})
}

func (m *MemoryStore) updateReview(id string, mutate func(*models.ScrapedReview)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, list := range m.reviews {
		for i := range list {
			if list[i].ID == id {
				mutate(&list[i])
				return nil
			}
		}
	}
	return fmt.Errorf("review %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) CreateDraft(ctx context.Context, d *models.ProductDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if _, exists := m.drafts[d.ID]; exists {
		return fmt.Errorf("draft %s: %w", d.ID, ErrConflict)
	}
	now := m.now()
	d.CreatedAt, d.UpdatedAt = now, now
	m.drafts[d.ID] = copyDraft(d)
	return nil
}

func (m *MemoryStore) GetDraft(ctx context.Context, id string) (*models.ProductDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return copyDraft(d), nil
}

func (m *MemoryStore) ListDrafts(ctx context.Context, statuses []models.DraftStatus, limit int) ([]models.ProductDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[models.DraftStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []models.ProductDraft
	for _, d := range m.drafts {
		if len(want) > 0 && !want[d.Status] {
			continue
		}
		out = append(out, *copyDraft(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateDraft applies mutate under the store lock, so updates never
// interleave and ErrConflict cannot occur here.
func (m *MemoryStore) UpdateDraft(ctx context.Context, id string, mutate func(*models.ProductDraft) error) (*models.ProductDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	working := copyDraft(current)
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = m.now()
	m.drafts[id] = working
	return copyDraft(working), nil
}

func (m *MemoryStore) DeleteDraft(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.drafts[id]; !ok {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	delete(m.drafts, id)
	return nil
}

func (m *MemoryStore) CountDraftsByStatus(ctx context.Context) (map[models.DraftStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[models.DraftStatus]int, len(models.AllDraftStatuses))
	for _, s := range models.AllDraftStatuses {
		counts[s] = 0
	}
	for _, d := range m.drafts {
		counts[d.Status]++
	}
	return counts, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if in.SourceDraftID != "" && p.SourceDraftID == in.SourceDraftID {
			return nil, fmt.Errorf("product for draft %s: %w", in.SourceDraftID, ErrConflict)
		}
	}
	p := &models.Product{
		ID:               uuid.NewString(),
		SourceDraftID:    in.SourceDraftID,
		Name:             in.Name,
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		Category:         in.Category,
		Price:            in.Price,
		CompareAtPrice:   in.CompareAtPrice,
		Images:           append([]string{}, in.Images...),
		InStock:          in.InStock,
		Featured:         in.Featured,
		CreatedAt:        m.now(),
	}
	m.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) FindProductByDraftID(ctx context.Context, draftID string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.SourceDraftID == draftID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("product for draft %s: %w", draftID, ErrNotFound)
}

func (m *MemoryStore) CreateReview(ctx context.Context, r models.CatalogReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.catalog = append(m.catalog, r)
	return nil
}

// Products returns every catalog product.
func (m *MemoryStore) Products() []models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out
}

// CatalogReviews returns the reviews attached to productID.
func (m *MemoryStore) CatalogReviews(productID string) []models.CatalogReview {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.CatalogReview
	for _, r := range m.catalog {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out
}

func copyScraped(p *models.ScrapedProduct) *models.ScrapedProduct {
	cp := *p
	cp.RawImages = append([]string{}, p.RawImages...)
	cp.UploadedImageURLs = append([]string{}, p.UploadedImageURLs...)
	return &cp
}

func copyDraft(d *models.ProductDraft) *models.ProductDraft {
	cp := *d
	cp.RawImages = append([]string(nil), d.RawImages...)
	cp.UploadedImages = append([]string(nil), d.UploadedImages...)
	cp.CuratedImages = append([]string(nil), d.CuratedImages...)
	return &cp
}
