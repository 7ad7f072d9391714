package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/product-sourcing/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	scrapedCollection = "scraped_products"
	reviewsCollection = "scraped_reviews"
	draftsCollection  = "product_drafts"
)

// MongoStore persists pipeline data in MongoDB.
type MongoStore struct {
	scraped *mongo.Collection
	reviews *mongo.Collection
	drafts  *mongo.Collection
	logger  *zap.Logger
	now     func() time.Time
}

var (
	_ ScrapedProductStore = (*MongoStore)(nil)
	_ ReviewStore         = (*MongoStore)(nil)
	_ DraftStore          = (*MongoStore)(nil)
)

func NewMongoStore(db *mongo.Database, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{
		scraped: db.Collection(scrapedCollection),
		reviews: db.Collection(reviewsCollection),
		drafts:  db.Collection(draftsCollection),
		logger:  logger,
		now:     time.Now,
	}
}

// EnsureIndexes creates the indexes the store relies on. The unique index on
// source_url is what keeps concurrent upserts of one URL to a single row.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.scraped.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "source_url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "scrape_status", Value: 1}, {Key: "sent_to_curation", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("scraped product indexes: %w", err)
	}
	if _, err := s.reviews.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "scraped_product_id", Value: 1}}},
		{Keys: bson.D{{Key: "translation_status", Value: 1}, {Key: "created_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("review indexes: %w", err)
	}
	if _, err := s.drafts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("draft indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) UpsertScrape(ctx context.Context, u models.ScrapeUpdate) (*models.ScrapedProduct, error) {
	now := s.now()
	set := bson.M{
		"source_name":     u.SourceName,
		"scrape_status":   u.Status,
		"error_message":   u.ErrorMessage,
		"last_scraped_at": u.ScrapedAt,
		"updated_at":      now,
	}
	onInsert := bson.M{
		"_id":                 uuid.NewString(),
		"image_upload_status": models.ImagesPending,
		"uploaded_image_urls": []string{},
		"sent_to_curation":    false,
		"review_count":        0,
		"created_at":          now,
	}
	raw := bson.M{
		"external_id":     u.ExternalID,
		"raw_name":        u.RawName,
		"raw_description": u.RawDescription,
		"raw_price_text":  u.RawPriceText,
		"raw_images":      nonNil(u.RawImages),
		"raw_category":    u.RawCategory,
		"raw_metadata":    u.RawMetadata,
	}
	// A failed attempt only seeds raw fields on first insert
	target := set
	if u.KeepsRawFields() {
		target = onInsert
	}
	for k, v := range raw {
		target[k] = v
	}

	filter := bson.M{"source_url": u.SourceURL}
	update := bson.M{"$set": set, "$setOnInsert": onInsert}
	opts := options.Update().SetUpsert(true)

	_, err := s.scraped.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race on the unique index; the row exists now
		_, err = s.scraped.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert scraped product %s: %w", u.SourceURL, err)
	}
	return s.FindScrapedByURL(ctx, u.SourceURL)
}

func (s *MongoStore) GetScrapedProduct(ctx context.Context, id string) (*models.ScrapedProduct, error) {
	return s.findScraped(ctx, bson.M{"_id": id}, id)
}

func (s *MongoStore) FindScrapedByURL(ctx context.Context, sourceURL string) (*models.ScrapedProduct, error) {
	return s.findScraped(ctx, bson.M{"source_url": sourceURL}, sourceURL)
}

func (s *MongoStore) findScraped(ctx context.Context, filter bson.M, label string) (*models.ScrapedProduct, error) {
	var p models.ScrapedProduct
	if err := s.scraped.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("scraped product %s: %w", label, ErrNotFound)
		}
		return nil, fmt.Errorf("find scraped product %s: %w", label, err)
	}
	return &p, nil
}

func (s *MongoStore) ListScrapedProducts(ctx context.Context, f ScrapedFilter) ([]models.ScrapedProduct, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["scrape_status"] = f.Status
	}
	if f.SentToCuration != nil {
		filter["sent_to_curation"] = *f.SentToCuration
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := s.scraped.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list scraped products: %w", err)
	}
	var out []models.ScrapedProduct
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode scraped products: %w", err)
	}
	return out, nil
}

func (s *MongoStore) SetImageState(ctx context.Context, id string, status models.ImageUploadStatus, uploaded []string) error {
	set := bson.M{"image_upload_status": status, "updated_at": s.now()}
	if uploaded != nil {
		set["uploaded_image_urls"] = uploaded
	}
	return s.updateScraped(ctx, id, set)
}

func (s *MongoStore) SetReviewCount(ctx context.Context, id string, count int) error {
	return s.updateScraped(ctx, id, bson.M{"review_count": count})
}

func (s *MongoStore) updateScraped(ctx context.Context, id string, set bson.M) error {
	res, err := s.scraped.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update scraped product %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("scraped product %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) MarkSentToCuration(ctx context.Context, id, draftID string) error {
	res, err := s.scraped.UpdateOne(ctx,
		bson.M{"_id": id, "sent_to_curation": false},
		bson.M{"$set": bson.M{"sent_to_curation": true, "draft_id": draftID, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("mark %s sent to curation: %w", id, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.GetScrapedProduct(ctx, id); err != nil {
		return err
	}
	return ErrAlreadySent
}

func (s *MongoStore) ListReviews(ctx context.Context, scrapedProductID string) ([]models.ScrapedReview, error) {
	cursor, err := s.reviews.Find(ctx, bson.M{"scraped_product_id": scrapedProductID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	var out []models.ScrapedReview
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return out, nil
}

func (s *MongoStore) AddReviews(ctx context.Context, reviews []models.ScrapedReview) error {
	if len(reviews) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(reviews))
	for _, r := range reviews {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.TranslationStatus == "" {
			r.TranslationStatus = models.ReviewPending
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
		}
		docs = append(docs, r)
	}
	if _, err := s.reviews.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert reviews: %w", err)
	}
	return nil
}

func (s *MongoStore) ListPendingReviews(ctx context.Context, limit int) ([]models.ScrapedReview, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	// rows written before review translation existed have no status yet
	cursor, err := s.reviews.Find(ctx, bson.M{"translation_status": bson.M{"$in": bson.A{models.ReviewPending, nil}}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	var out []models.ScrapedReview
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return out, nil
}

func (s *MongoStore) SetReviewTranslation(ctx context.Context, id string, status models.ReviewTranslationStatus, translated, errMsg string) error {
	set := bson.M{"translation_status": status, "translated_text": translated, "translation_error": ""}
	if status == models.ReviewFailed {
		set["translation_error"] = errMsg
	}
	return s.updateReview(ctx, id, set)
}

func (s *MongoStore) SetReviewImages(ctx context.Context, id string, uploaded []string) error {
	return s.updateReview(ctx, id, bson.M{"uploaded_images": nonNil(uploaded)})
}

func (s *MongoStore) updateReview(ctx context.Context, id string, set bson.M) error {
	res, err := s.reviews.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update review %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) CreateDraft(ctx context.Context, d *models.ProductDraft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	if _, err := s.drafts.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("draft %s: %w", d.ID, ErrConflict)
		}
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

func (s *MongoStore) GetDraft(ctx context.Context, id string) (*models.ProductDraft, error) {
	var d models.ProductDraft
	if err := s.drafts.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find draft %s: %w", id, err)
	}
	return &d, nil
}

func (s *MongoStore) ListDrafts(ctx context.Context, statuses []models.DraftStatus, limit int) ([]models.ProductDraft, error) {
	filter := bson.M{}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.drafts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	var out []models.ProductDraft
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	return out, nil
}

// UpdateDraft replaces the document only if status and updated_at still
// match what was read, which makes every transition a compare-and-set.
func (s *MongoStore) UpdateDraft(ctx context.Context, id string, mutate func(*models.ProductDraft) error) (*models.ProductDraft, error) {
	current, err := s.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	prevStatus, prevUpdated := current.Status, current.UpdatedAt

	if err := mutate(current); err != nil {
		return nil, err
	}
	current.ID = id
	current.UpdatedAt = s.now()

	res, err := s.drafts.ReplaceOne(ctx, bson.M{
		"_id":        id,
		"status":     prevStatus,
		"updated_at": prevUpdated,
	}, current)
	if err != nil {
		return nil, fmt.Errorf("replace draft %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("draft %s: %w", id, ErrConflict)
	}
	return current, nil
}

func (s *MongoStore) DeleteDraft(ctx context.Context, id string) error {
	res, err := s.drafts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) CountDraftsByStatus(ctx context.Context) (map[models.DraftStatus]int, error) {
	cursor, err := s.drafts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count drafts: %w", err)
	}
	var rows []struct {
		Status models.DraftStatus `bson:"_id"`
		Count  int                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode draft counts: %w", err)
	}

	counts := make(map[models.DraftStatus]int, len(models.AllDraftStatuses))
	for _, st := range models.AllDraftStatuses {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
