package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	productsCollection       = "products"
	productReviewsCollection = "product_reviews"
)

// productDocument is the persisted shape of a catalog product. Prices are
// stored as Decimal128 so the catalog never sees float rounding.
type productDocument struct {
	ID               string                `bson:"_id"`
	SourceDraftID    string                `bson:"source_draft_id"`
	Name             string                `bson:"name"`
	Description      string                `bson:"description"`
	ShortDescription string                `bson:"short_description"`
	Category         string                `bson:"category"`
	Price            primitive.Decimal128  `bson:"price"`
	CompareAtPrice   *primitive.Decimal128 `bson:"compare_at_price,omitempty"`
	Images           []string              `bson:"images"`
	InStock          bool                  `bson:"in_stock"`
	Featured         bool                  `bson:"featured"`
	CreatedAt        time.Time             `bson:"created_at"`
}

// MongoCatalog writes published products into the live catalog collections.
type MongoCatalog struct {
	products *mongo.Collection
	reviews  *mongo.Collection
	logger   *zap.Logger
}

var _ CatalogWriter = (*MongoCatalog)(nil)

func NewMongoCatalog(db *mongo.Database, logger *zap.Logger) *MongoCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoCatalog{
		products: db.Collection(productsCollection),
		reviews:  db.Collection(productReviewsCollection),
		logger:   logger,
	}
}

// EnsureIndexes makes source_draft_id unique so a draft can back at most one
// catalog product.
func (c *MongoCatalog) EnsureIndexes(ctx context.Context) error {
	if _, err := c.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "source_draft_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("product indexes: %w", err)
	}
	if _, err := c.reviews.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "product_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("product review indexes: %w", err)
	}
	return nil
}

func (c *MongoCatalog) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	price, err := toDecimal128(in.Price)
	if err != nil {
		return nil, err
	}
	doc := productDocument{
		ID:               uuid.NewString(),
		SourceDraftID:    in.SourceDraftID,
		Name:             in.Name,
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		Category:         in.Category,
		Price:            price,
		Images:           nonNil(in.Images),
		InStock:          in.InStock,
		Featured:         in.Featured,
		CreatedAt:        time.Now(),
	}
	if in.CompareAtPrice != nil {
		cmp, err := toDecimal128(*in.CompareAtPrice)
		if err != nil {
			return nil, err
		}
		doc.CompareAtPrice = &cmp
	}

	if _, err := c.products.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("product for draft %s: %w", in.SourceDraftID, ErrConflict)
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	c.logger.Info("Catalog product created", zap.String("product_id", doc.ID), zap.String("draft_id", in.SourceDraftID))
	return doc.toModel()
}

func (c *MongoCatalog) FindProductByDraftID(ctx context.Context, draftID string) (*models.Product, error) {
	var doc productDocument
	if err := c.products.FindOne(ctx, bson.M{"source_draft_id": draftID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("product for draft %s: %w", draftID, ErrNotFound)
		}
		return nil, fmt.Errorf("find product for draft %s: %w", draftID, err)
	}
	return doc.toModel()
}

func (c *MongoCatalog) CreateReview(ctx context.Context, r models.CatalogReview) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if _, err := c.reviews.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert product review: %w", err)
	}
	return nil
}

func (d productDocument) toModel() (*models.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("product %s price: %w", d.ID, err)
	}
	p := &models.Product{
		ID:               d.ID,
		SourceDraftID:    d.SourceDraftID,
		Name:             d.Name,
		Description:      d.Description,
		ShortDescription: d.ShortDescription,
		Category:         d.Category,
		Price:            price,
		Images:           d.Images,
		InStock:          d.InStock,
		Featured:         d.Featured,
		CreatedAt:        d.CreatedAt,
	}
	if d.CompareAtPrice != nil {
		cmp, err := decimal.NewFromString(d.CompareAtPrice.String())
		if err != nil {
			return nil, fmt.Errorf("product %s compare-at price: %w", d.ID, err)
		}
		p.CompareAtPrice = &cmp
	}
	return p, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert price %s: %w", d, err)
	}
	return v, nil
}
