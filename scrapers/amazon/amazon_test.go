package amazon

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
	<span id="productTitle">  Glass Hookah  Base </span>
	<div class="priceToPay"><span class="a-offscreen">₹1,499.00</span></div>
	<div class="basisPrice"><span class="a-offscreen">₹2,999.00</span></div>
	<div id="feature-bullets"><ul>
		<li><span class="a-list-item">Heavy borosilicate glass</span></li>
		<li><span class="a-list-item">Fits standard stems</span></li>
	</ul></div>
	<div id="wayfinding-breadcrumbs_feature_div"><ul>
		<li>Home &amp; Kitchen</li><li>›</li><li>Hookahs</li>
	</ul></div>
	<div id="altImages"><ul>
		<li class="item"><img src="https://m.media-amazon.com/images/I/71abc._AC_US40_.jpg"></li>
		<li class="item"><img src="https://m.media-amazon.com/images/I/81def._AC_US40_.jpg"></li>
	</ul></div>
	<div data-hook="review">
		<span class="a-profile-name">Ravi</span>
		<i data-hook="review-star-rating"><span>4.0 out of 5 stars</span></i>
		<span data-hook="review-date">Reviewed in India on 3 March 2024</span>
		<span data-hook="review-body"><span>Solid build.</span></span>
	</div>
</body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtract(t *testing.T) {
	s := NewAmazonScraper()
	doc := parse(t, page)
	require.True(t, s.Ready(doc))

	p, err := s.Extract(doc, "https://www.amazon.in/Glass-Hookah/dp/B0C1234567?ref=x")
	require.NoError(t, err)

	assert.Equal(t, "Glass Hookah Base", p.Name)
	assert.Equal(t, "₹1,499.00", p.PriceText)
	assert.Equal(t, "Heavy borosilicate glass\nFits standard stems", p.Description)
	assert.Equal(t, "Hookahs", p.Category)
	assert.Equal(t, "B0C1234567", p.ExternalID)
	assert.Equal(t, []string{
		"https://m.media-amazon.com/images/I/71abc.jpg",
		"https://m.media-amazon.com/images/I/81def.jpg",
	}, p.Images)
	assert.Equal(t, "₹2,999.00", p.Metadata["mrp"])
}

func TestExtract_DynamicImageKeepsLargest(t *testing.T) {
	html := `<html><body><span id="productTitle">X</span>
		<img id="landingImage" data-a-dynamic-image='{"https://img.example/small.jpg":[100,100],"https://img.example/large.jpg":[1500,1500]}'>
	</body></html>`

	p, err := NewAmazonScraper().Extract(parse(t, html), "https://www.amazon.com/dp/B000000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/large.jpg"}, p.Images)
}

func TestExtractReviews(t *testing.T) {
	reviews, err := NewAmazonScraper().ExtractReviews(parse(t, page), "https://www.amazon.in/dp/B0C1234567")
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	assert.Equal(t, "Solid build.", reviews[0].Text)
	assert.Equal(t, 4, reviews[0].Rating)
	assert.Equal(t, "Ravi", reviews[0].AuthorName)
	assert.Equal(t, "India", reviews[0].AuthorCountry)
	require.NotNil(t, reviews[0].Date)
	assert.Equal(t, 3, reviews[0].Date.Day())
}

func TestReadyRejectsBlockPage(t *testing.T) {
	assert.False(t, NewAmazonScraper().Ready(parse(t, `<html><head><title>Robot Check</title></head><body></body></html>`)))
}
