package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/utils"
)

// ErrMalformedResponse marks model output that is not the expected JSON.
var ErrMalformedResponse = errors.New("malformed AI response")

const (
	promptVersion        = "v1"
	reviewsPromptVersion = "v1-reviews"
)

// JSONGenerator is the model call. *utils.GeminiClient satisfies it.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// GeminiEnricher writes brand copy in the target language and picks a
// category and a suggested price.
type GeminiEnricher struct {
	gen        JSONGenerator
	language   string
	categories []string
}

func NewGeminiEnricher(gen JSONGenerator, language string, categories []string) *GeminiEnricher {
	if language == "" {
		language = "French"
	}
	return &GeminiEnricher{gen: gen, language: language, categories: categories}
}

func (g *GeminiEnricher) TranslateAndEnrich(ctx context.Context, raw RawFields) (*models.AIEnrichment, error) {
	text, err := g.gen.GenerateJSON(ctx, g.systemPrompt(), g.userPrompt(raw))
	if err != nil {
		if errors.Is(err, utils.ErrQuotaExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, err
	}

	out, err := g.parse(text)
	if err != nil {
		return nil, err
	}
	out.Model = g.gen.Model()
	out.PromptVersion = promptVersion
	if len(raw.Reviews) > 0 {
		out.PromptVersion = reviewsPromptVersion
	}
	return out, nil
}

func (g *GeminiEnricher) systemPrompt() string {
	return fmt.Sprintf(`You are an expert copywriter for a premium hookah and lifestyle accessories brand.

Brand voice:
- Calm and confident, never pushy
- Natural, refined %[1]s without slang
- Speaks like a knowledgeable friend, not a salesperson
- Highlights experience, quality and aesthetics

Rules:
- ALWAYS write in %[1]s
- Long description: 2-4 sentences
- Short description: 1 evocative sentence
- Product name: short and elegant
- Category must be one of: %[2]s
- Suggest a price in euro cents (e.g. 4999 = 49.99 EUR) for premium positioning
- NEVER mention the source price or where the product comes from`, g.language, strings.Join(g.categories, ", "))
}

func (g *GeminiEnricher) userPrompt(raw RawFields) string {
	var b strings.Builder
	b.WriteString("Rewrite this raw product for the brand:\n\n")
	fmt.Fprintf(&b, "Original name: %s\n", raw.Name)
	fmt.Fprintf(&b, "Original description: %s\n", orNA(raw.Description))
	fmt.Fprintf(&b, "Source price: %s\n", orNA(raw.PriceText))
	fmt.Fprintf(&b, "Source: %s\n", orNA(raw.SourceName))
	fmt.Fprintf(&b, "Source category hint: %s\n", orNA(raw.Category))

	if len(raw.Reviews) > 0 {
		b.WriteString("\nCustomer reviews (use them to highlight what buyers value):\n")
		for _, r := range raw.Reviews {
			fmt.Fprintf(&b, "- (%d/5) %s\n", r.Rating, r.Text)
		}
	}

	b.WriteString(`
Answer in strict JSON with this structure:
{
  "name": "Product name",
  "description": "Long description (2-4 sentences)",
  "shortDescription": "Short description (1 sentence)",
  "category": "` + strings.Join(g.categories, "|") + `",
  "suggestedPriceCents": 4999
}`)
	return b.String()
}

type enrichmentJSON struct {
	Name                string      `json:"name"`
	Description         string      `json:"description"`
	ShortDescription    string      `json:"shortDescription"`
	Category            string      `json:"category"`
	SuggestedPriceCents json.Number `json:"suggestedPriceCents"`
}

func (g *GeminiEnricher) parse(text string) (*models.AIEnrichment, error) {
	body := stripCodeFence(text)

	var parsed enrichmentJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, truncate(body, 200))
	}

	for field, v := range map[string]string{
		"name":             parsed.Name,
		"description":      parsed.Description,
		"shortDescription": parsed.ShortDescription,
		"category":         parsed.Category,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformedResponse, field)
		}
	}
	if len(g.categories) > 0 && !slices.Contains(g.categories, parsed.Category) {
		return nil, fmt.Errorf("%w: invalid category %q, must be one of %s",
			ErrMalformedResponse, parsed.Category, strings.Join(g.categories, ", "))
	}
	price, err := parsed.SuggestedPriceCents.Int64()
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("%w: invalid suggestedPriceCents %q", ErrMalformedResponse, parsed.SuggestedPriceCents.String())
	}

	return &models.AIEnrichment{
		Name:                strings.TrimSpace(parsed.Name),
		Description:         strings.TrimSpace(parsed.Description),
		ShortDescription:    strings.TrimSpace(parsed.ShortDescription),
		Category:            parsed.Category,
		SuggestedPriceCents: price,
	}, nil
}

// TranslateReview renders a customer review in the target language,
// keeping its tone and meaning.
func (g *GeminiEnricher) TranslateReview(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Translate this customer review into %s.
Keep the tone, the meaning and any emoji. Do not add or remove information.

Review:
%s

Answer in strict JSON: {"translation": "..."}`, g.language, text)

	out, err := g.gen.GenerateJSON(ctx, "You translate customer reviews faithfully.", prompt)
	if err != nil {
		if errors.Is(err, utils.ErrQuotaExceeded) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", err
	}

	body := stripCodeFence(out)
	var parsed struct {
		Translation string `json:"translation"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedResponse, truncate(body, 200))
	}
	translated := strings.TrimSpace(parsed.Translation)
	if translated == "" {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedResponse, "translation")
	}
	return translated, nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not available"
	}
	return s
}

// truncate keeps at most n bytes of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
