package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raushankrgupta/product-sourcing/curation"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/pipeline"
	"github.com/raushankrgupta/product-sourcing/publisher"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
	"github.com/raushankrgupta/product-sourcing/store"
	"github.com/raushankrgupta/product-sourcing/translation"
	"github.com/raushankrgupta/product-sourcing/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubEnricher struct{}

func (stubEnricher) TranslateAndEnrich(ctx context.Context, raw translation.RawFields) (*models.AIEnrichment, error) {
	return &models.AIEnrichment{
		Name:                "Bol " + raw.Name,
		Description:         "Description " + raw.Name,
		ShortDescription:    "Court",
		Category:            "bol",
		SuggestedPriceCents: 2490,
		Model:               "stub",
		PromptVersion:       "v1",
	}, nil
}

type stubReviewTranslator struct{}

func (stubReviewTranslator) TranslateReview(ctx context.Context, text string) (string, error) {
	return "FR " + text, nil
}

func newTestServer(t *testing.T, auth AuthConfig) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	s := store.NewMemoryStore()
	pub := publisher.New(s, s, s, logger)
	p := pipeline.New(
		base.RendererConfig{Backend: "none"},
		nil,
		curation.NewService(s, s, s, nil, curation.Options{Categories: []string{"bol", "chicha"}}, logger),
		translation.NewRunner(s, s, stubEnricher{}, 0, logger),
		translation.NewReviewRunner(s, stubReviewTranslator{}, 0, logger),
		pub,
		logger,
	)
	t.Cleanup(pub.Wait)

	srv := httptest.NewServer(NewRouter(NewHandler(p, nil, 5, 10, logger), auth, logger))
	t.Cleanup(srv.Close)
	return srv, s
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, token string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	srv, s := newTestServer(t, AuthConfig{})

	resp, body := call(t, srv, http.MethodPost, "/drafts", curation.ManualDraft{
		Name:      "Glass bowl",
		PriceText: "19,90 €",
		Images:    []string{"https://cdn.example/bowl.jpg"},
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.Equal(t, string(models.DraftPendingTranslation), body["status"])

	resp, body = call(t, srv, http.MethodPost, "/pipeline/translate?limit=3", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["translated"])

	resp, _ = call(t, srv, http.MethodPost, "/drafts/"+id+"/review", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = call(t, srv, http.MethodPut, "/drafts/"+id+"/curated", map[string]any{"curated_price": 2990}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2990, body["curated_price"])

	resp, body = call(t, srv, http.MethodPost, "/drafts/"+id+"/approve", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "anonymous", body["reviewed_by"])

	resp, body = call(t, srv, http.MethodPost, "/pipeline/publish?draft_id="+id, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bol Glass bowl", body["name"])

	resp, _ = call(t, srv, http.MethodPost, "/pipeline/publish?draft_id="+id, nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.Len(t, s.Products(), 1)

	resp, body = call(t, srv, http.MethodGet, "/drafts/stats", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])
}

func TestErrorStatusMapping(t *testing.T) {
	srv, _ := newTestServer(t, AuthConfig{})

	resp, _ := call(t, srv, http.MethodGet, "/drafts/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodPost, "/pipeline/publish", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodPost, "/pipeline/translate?limit=zero", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodPost, "/pipeline/scrape", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "no URLs and none configured")

	resp, _ = call(t, srv, http.MethodPost, "/drafts", map[string]string{"name": " "}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := call(t, srv, http.MethodPost, "/drafts", curation.ManualDraft{Name: "Hose"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, _ = call(t, srv, http.MethodPost, "/drafts/"+id+"/approve", nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "pending drafts cannot be approved")

	resp, _ = call(t, srv, http.MethodGet, "/drafts?status=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodPost, "/scraped/nope/send", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListDrafts_StatusFilter(t *testing.T) {
	srv, _ := newTestServer(t, AuthConfig{})

	for _, name := range []string{"A", "B"} {
		resp, _ := call(t, srv, http.MethodPost, "/drafts", curation.ManualDraft{Name: name}, "")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := call(t, srv, http.MethodGet, "/drafts?status=pending_translation,translated", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total"])

	resp, body = call(t, srv, http.MethodGet, "/drafts?status=approved", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["total"])
	assert.Equal(t, []any{}, body["drafts"])
}

func TestAuthMiddleware(t *testing.T) {
	const cron, secret = "cron-secret", "jwt-secret"
	srv, _ := newTestServer(t, AuthConfig{CronSecret: cron, JWTSecret: secret})

	resp, _ := call(t, srv, http.MethodGet, "/drafts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/drafts", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/drafts", nil, cron)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	token, err := utils.GenerateToken(secret, "alice", time.Hour)
	require.NoError(t, err)

	resp, body := call(t, srv, http.MethodPost, "/drafts", curation.ManualDraft{Name: "Tongs"}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, _ = call(t, srv, http.MethodPost, "/pipeline/translate", nil, cron)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = call(t, srv, http.MethodPost, "/drafts/"+id+"/review", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = call(t, srv, http.MethodPost, "/drafts/"+id+"/reject", map[string]string{"reason": "off-brand"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["reviewed_by"])
	assert.Equal(t, "off-brand", body["rejection_reason"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, AuthConfig{CronSecret: "x"})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/drafts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestTranslateReviewsOverHTTP(t *testing.T) {
	srv, s := newTestServer(t, AuthConfig{})
	require.NoError(t, s.AddReviews(context.Background(), []models.ScrapedReview{
		{ID: "r1", ScrapedProductID: "sp1", Text: "Great bowl", Rating: 5},
		{ID: "r2", ScrapedProductID: "sp1", Text: "Fine", Rating: 4},
	}))

	resp, body := call(t, srv, http.MethodPost, "/pipeline/translate-reviews?limit=1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["translated"])

	resp, body = call(t, srv, http.MethodPost, "/pipeline/translate-reviews", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["translated"])

	reviews, err := s.ListReviews(context.Background(), "sp1")
	require.NoError(t, err)
	for _, r := range reviews {
		assert.Equal(t, models.ReviewTranslated, r.TranslationStatus)
		assert.Equal(t, "FR "+r.Text, r.TranslatedText)
	}

	resp, _ = call(t, srv, http.MethodPost, "/pipeline/translate-reviews?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthzSkipsAuth(t *testing.T) {
	srv, _ := newTestServer(t, AuthConfig{CronSecret: "cron-secret", JWTSecret: "jwt-secret"})

	resp, body := call(t, srv, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = call(t, srv, http.MethodGet, "/drafts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
