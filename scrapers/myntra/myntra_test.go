package myntra

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statePage = `<html><head><script>
window.__myx = {"pdpData":{
	"name":"Ceramic Hookah Bowl",
	"price":1299,
	"mrp":1999,
	"productDetails":"Hand glazed ceramic.",
	"analytics":{"articleType":"Hookah Accessories"},
	"media":{"albums":[
		{"name":"default","images":[{"src":"https://assets.myntassets.com/a.jpg"},{"src":"https://assets.myntassets.com/b.jpg"}]},
		{"name":"animatedImage","images":[{"src":"https://assets.myntassets.com/a.jpg"}]}
	]}
}};
</script></head><body><h1 class="pdp-title">ignored</h1></body></html>`

func TestExtract_State(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(statePage))
	require.NoError(t, err)

	s := NewMyntraScraper()
	assert.True(t, s.CanHandle("https://www.myntra.com/hookah/brand/bowl/1234567/buy"))
	assert.True(t, s.Ready(doc))

	p, err := s.Extract(doc, "https://www.myntra.com/hookah/brand/bowl/1234567/buy")
	require.NoError(t, err)
	assert.Equal(t, "Ceramic Hookah Bowl", p.Name)
	assert.Equal(t, "Rs. 1299", p.PriceText)
	assert.Equal(t, "Rs. 1999", p.Metadata["mrp"])
	assert.Equal(t, "Hand glazed ceramic.", p.Description)
	assert.Equal(t, "Hookah Accessories", p.Category)
	assert.Equal(t, []string{"https://assets.myntassets.com/a.jpg", "https://assets.myntassets.com/b.jpg"}, p.Images)
	assert.Equal(t, "1234567", p.ExternalID)
	assert.Equal(t, "state", p.Metadata["extractionSource"])
}

func TestExtract_HTMLFallback(t *testing.T) {
	html := `<html><head><script>window.__myx = {not json};</script></head><body>
		<h1 class="pdp-title">Hookah  Hose</h1>
		<span class="pdp-price"><strong>Rs. 549</strong></span>
		<div class="pdp-product-description-content">Washable silicone.</div>
		<div class="image-grid-image" style="background-image: url(&quot;https://assets.myntassets.com/h1.jpg&quot;);"></div>
		<div class="image-grid-image" style="background-image: url('https://assets.myntassets.com/h2.jpg');"></div>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	p, err := NewMyntraScraper().Extract(doc, "https://www.myntra.com/hose")
	require.NoError(t, err)
	assert.Equal(t, "Hookah Hose", p.Name)
	assert.Equal(t, "Rs. 549", p.PriceText)
	assert.Equal(t, "Washable silicone.", p.Description)
	assert.Equal(t, []string{"https://assets.myntassets.com/h1.jpg", "https://assets.myntassets.com/h2.jpg"}, p.Images)
	assert.Empty(t, p.ExternalID)
	assert.Equal(t, "html", p.Metadata["extractionSource"])
}

func TestBackgroundURL(t *testing.T) {
	assert.Equal(t, "https://x/a.jpg", backgroundURL(`background-image: url("https://x/a.jpg")`))
	assert.Empty(t, backgroundURL("color: red"))
	assert.Empty(t, backgroundURL("background: url(unterminated"))
}
