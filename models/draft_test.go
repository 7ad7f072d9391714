package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func str(s string) *string { return &s }
func cents(c int64) *int64 { return &c }

func TestEffectiveName(t *testing.T) {
	tests := []struct {
		name    string
		curated *string
		ai      *string
		want    string
	}{
		{"raw only", nil, nil, "Raw"},
		{"ai over raw", nil, str("AI"), "AI"},
		{"curated over ai", str("Curated"), str("AI"), "Curated"},
		{"curated over raw", str("Curated"), nil, "Curated"},
		{"blank curated falls through", str("  "), str("AI"), "AI"},
		{"blank ai falls through", nil, str(""), "Raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &ProductDraft{RawName: "Raw", AIName: tt.ai}
			d.CuratedName = tt.curated
			assert.Equal(t, tt.want, EffectiveName(d))
		})
	}
}

func TestEffectiveDescriptions(t *testing.T) {
	d := &ProductDraft{}
	assert.Equal(t, "", EffectiveDescription(d))
	assert.Equal(t, "", EffectiveShortDescription(d))

	d.RawDescription = str("raw desc")
	assert.Equal(t, "raw desc", EffectiveDescription(d))

	d.AIDescription = str("ai desc")
	d.AIShortDescription = str("ai short")
	assert.Equal(t, "ai desc", EffectiveDescription(d))
	assert.Equal(t, "ai short", EffectiveShortDescription(d))

	d.CuratedDescription = str("curated desc")
	d.CuratedShortDescription = str("curated short")
	assert.Equal(t, "curated desc", EffectiveDescription(d))
	assert.Equal(t, "curated short", EffectiveShortDescription(d))
}

func TestEffectiveCategory(t *testing.T) {
	d := &ProductDraft{RawCategory: str("Hookahs")}
	_, ok := EffectiveCategory(d)
	assert.False(t, ok, "raw category is never effective")

	d.AICategory = str("chicha")
	got, ok := EffectiveCategory(d)
	assert.True(t, ok)
	assert.Equal(t, "chicha", got)

	d.CuratedCategory = str("bol")
	got, _ = EffectiveCategory(d)
	assert.Equal(t, "bol", got)
}

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name    string
		curated *int64
		ai      *int64
		want    int64
		ok      bool
	}{
		{"none", nil, nil, 0, false},
		{"ai only", nil, cents(2999), 2999, true},
		{"curated only", cents(1500), nil, 1500, true},
		{"curated wins", cents(1500), cents(2999), 1500, true},
		{"curated zero still wins", cents(0), cents(2999), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &ProductDraft{AISuggestedPrice: tt.ai}
			d.CuratedPrice = tt.curated
			got, ok := EffectivePrice(d)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveImages(t *testing.T) {
	d := &ProductDraft{}
	got := EffectiveImages(d)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	d.RawImages = []string{"raw.jpg"}
	assert.Equal(t, []string{"raw.jpg"}, EffectiveImages(d))

	d.UploadedImages = []string{"up.jpg"}
	assert.Equal(t, []string{"up.jpg"}, EffectiveImages(d))

	d.CuratedImages = []string{"cur.jpg"}
	assert.Equal(t, []string{"cur.jpg"}, EffectiveImages(d))

	d.CuratedImages = []string{}
	assert.Equal(t, []string{"up.jpg"}, EffectiveImages(d), "empty curated list does not hide uploads")
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]DraftStatus]bool{
		{DraftPendingTranslation, DraftTranslating}: true,
		{DraftTranslating, DraftTranslated}:         true,
		{DraftTranslating, DraftPendingTranslation}: true,
		{DraftTranslated, DraftInReview}:            true,
		{DraftTranslated, DraftPendingTranslation}:  true,
		{DraftInReview, DraftApproved}:              true,
		{DraftInReview, DraftRejected}:              true,
		{DraftInReview, DraftPendingTranslation}:    true,
		{DraftApproved, DraftPublished}:             true,
		{DraftApproved, DraftInReview}:              true,
		{DraftApproved, DraftPendingTranslation}:    true,
	}
	for _, from := range AllDraftStatuses {
		for _, to := range AllDraftStatuses {
			assert.Equal(t, allowed[[2]DraftStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, DraftRejected.Terminal())
	assert.True(t, DraftPublished.Terminal())
	assert.False(t, DraftApproved.Terminal())
	assert.True(t, DraftInReview.Valid())
	assert.False(t, DraftStatus("archived").Valid())
}

func TestCentsToPrice(t *testing.T) {
	assert.Equal(t, "29.99", CentsToPrice(2999).StringFixed(2))
	assert.Equal(t, "0.05", CentsToPrice(5).StringFixed(2))
}
