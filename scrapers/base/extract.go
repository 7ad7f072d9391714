package base

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	rePriceLike  = regexp.MustCompile(`[€$£¥₹]|\d+[.,]\d{2}|EUR|USD|GBP|Rs\.?`)
	reImageExt   = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|avif)($|\?)`)
	reImageCDN   = regexp.MustCompile(`(?i)(cloudinary|imgix|shopify|cdn)`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// MetaContent returns the content of the first non-empty meta tag whose
// property or name matches one of keys.
func MetaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`)
		for i := range sel.Nodes {
			if content := strings.TrimSpace(sel.Eq(i).AttrOr("content", "")); content != "" {
				return content
			}
		}
	}
	return ""
}

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// LooksLikePrice reports whether text carries a currency marker or a
// decimal amount.
func LooksLikePrice(text string) bool {
	return rePriceLike.MatchString(text)
}

// IsImageURL accepts absolute or root-relative URLs with an image extension
// or served from a known image CDN.
func IsImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	if !strings.HasPrefix(raw, "http") && !strings.HasPrefix(raw, "/") {
		return false
	}
	return reImageExt.MatchString(raw) || reImageCDN.MatchString(raw)
}

// AbsoluteURL resolves ref against the page URL. Protocol-relative and
// root-relative references are common on product pages.
func AbsoluteURL(pageURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return resolved.String()
}

// AppendUnique appends values that are not yet present in list.
func AppendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// JSONLD returns every JSON-LD object embedded in the page. Top-level arrays
// and @graph containers are flattened; invalid blocks are skipped.
func JSONLD(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		out = append(out, flattenLD(raw)...)
	})
	return out
}

func flattenLD(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, flattenLD(item)...)
		}
		return out
	case map[string]any:
		out := []map[string]any{t}
		if graph, ok := t["@graph"]; ok {
			out = append(out, flattenLD(graph)...)
		}
		return out
	}
	return nil
}

// LDType reports whether a JSON-LD object has the given @type, which may be
// a string or a list.
func LDType(obj map[string]any, typ string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return t == typ
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == typ {
				return true
			}
		}
	}
	return false
}

// LDString returns a string field, formatting numbers as they appear.
func LDString(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return formatFloat(v)
	case map[string]any:
		return LDString(v, "name")
	}
	return ""
}

func formatFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
