package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/raushankrgupta/product-sourcing/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	prompt   string
	system   string
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.response, f.err
}

func (f *fakeGenerator) Model() string { return "gemini-test" }

var categories = []string{"chicha", "bol", "tuyau", "charbon", "accessoire"}

func TestGeminiEnricher_ParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"name\":\"Bol Cristal\",\"description\":\"Un bol.\",\"shortDescription\":\"Bol.\",\"category\":\"bol\",\"suggestedPriceCents\":2990}\n```"}
	e := NewGeminiEnricher(gen, "French", categories)

	out, err := e.TranslateAndEnrich(context.Background(), RawFields{Name: "Crystal bowl", Category: "Bowls"})
	require.NoError(t, err)
	assert.Equal(t, "Bol Cristal", out.Name)
	assert.Equal(t, "bol", out.Category)
	assert.Equal(t, int64(2990), out.SuggestedPriceCents)
	assert.Equal(t, "gemini-test", out.Model)
	assert.Equal(t, promptVersion, out.PromptVersion)

	assert.Contains(t, gen.system, "ALWAYS write in French")
	assert.Contains(t, gen.prompt, "Original name: Crystal bowl")
	assert.Contains(t, gen.prompt, "Source category hint: Bowls")
	assert.Contains(t, gen.prompt, "Original description: Not available")
}

func TestGeminiEnricher_ReviewPromptVersion(t *testing.T) {
	gen := &fakeGenerator{response: `{"name":"n","description":"d","shortDescription":"s","category":"chicha","suggestedPriceCents":100}`}
	e := NewGeminiEnricher(gen, "French", categories)

	out, err := e.TranslateAndEnrich(context.Background(), RawFields{Name: "x", Reviews: []ReviewSnippet{{Text: "Superb", Rating: 5}}})
	require.NoError(t, err)
	assert.Equal(t, reviewsPromptVersion, out.PromptVersion)
	assert.Contains(t, gen.prompt, "- (5/5) Superb")
}

func TestGeminiEnricher_RejectsInvalidOutput(t *testing.T) {
	cases := map[string]string{
		"not json":         `Here is your product!`,
		"missing name":     `{"description":"d","shortDescription":"s","category":"bol","suggestedPriceCents":100}`,
		"unknown category": `{"name":"n","description":"d","shortDescription":"s","category":"pipe","suggestedPriceCents":100}`,
		"fractional price": `{"name":"n","description":"d","shortDescription":"s","category":"bol","suggestedPriceCents":49.99}`,
		"zero price":       `{"name":"n","description":"d","shortDescription":"s","category":"bol","suggestedPriceCents":0}`,
		"missing price":    `{"name":"n","description":"d","shortDescription":"s","category":"bol"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := NewGeminiEnricher(&fakeGenerator{response: body}, "French", categories)
			_, err := e.TranslateAndEnrich(context.Background(), RawFields{Name: "x"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestGeminiEnricher_MapsQuotaToRateLimited(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: googleapi: Error 429", utils.ErrQuotaExceeded)}
	e := NewGeminiEnricher(gen, "French", categories)

	_, err := e.TranslateAndEnrich(context.Background(), RawFields{Name: "x"})
	assert.ErrorIs(t, err, ErrRateLimited)

	gen.err = errors.New("connection reset")
	_, err = e.TranslateAndEnrich(context.Background(), RawFields{Name: "x"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestGeminiEnricher_TranslateReview(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"translation\": \" Très beau bol \"}\n```"}
	e := NewGeminiEnricher(gen, "French", categories)

	out, err := e.TranslateReview(context.Background(), "Very nice bowl")
	require.NoError(t, err)
	assert.Equal(t, "Très beau bol", out)
	assert.Contains(t, gen.prompt, "into French")
	assert.Contains(t, gen.prompt, "Very nice bowl")

	gen.response = `{"translation": ""}`
	_, err = e.TranslateReview(context.Background(), "Very nice bowl")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	gen.err = fmt.Errorf("%w: googleapi: Error 429", utils.ErrQuotaExceeded)
	_, err = e.TranslateReview(context.Background(), "Very nice bowl")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))

	// "é" is two bytes; cutting at 2 would split it
	assert.Equal(t, "a", truncate("aéz", 2))
	assert.Equal(t, "aé", truncate("aéz", 3))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("日本", 100), 200)))
}
