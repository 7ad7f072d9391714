package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/raushankrgupta/product-sourcing/curation"
	"github.com/raushankrgupta/product-sourcing/pipeline"
	"github.com/raushankrgupta/product-sourcing/publisher"
	"github.com/raushankrgupta/product-sourcing/store"
	"github.com/raushankrgupta/product-sourcing/translation"
	"github.com/raushankrgupta/product-sourcing/utils"
	"go.uber.org/zap"
)

// Handler serves the pipeline triggers and the curation API.
type Handler struct {
	pipeline         *pipeline.Pipeline
	defaultURLs      []string
	defaultBatchSize int
	// defaultReviewBatch is the review translation limit when none is given
	defaultReviewBatch int
	logger             *zap.Logger
}

func NewHandler(p *pipeline.Pipeline, defaultURLs []string, defaultBatchSize, defaultReviewBatch int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultBatchSize <= 0 {
		defaultBatchSize = 5
	}
	if defaultReviewBatch <= 0 {
		defaultReviewBatch = 10
	}
	return &Handler{
		pipeline:           p,
		defaultURLs:        defaultURLs,
		defaultBatchSize:   defaultBatchSize,
		defaultReviewBatch: defaultReviewBatch,
		logger:             logger,
	}
}

// NewRouter registers every route behind the CORS and latency middleware.
// Everything except the health check also sits behind AuthMiddleware.
func NewRouter(h *Handler, auth AuthConfig, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /pipeline/scrape", h.ScrapeHandler)
	mux.HandleFunc("POST /pipeline/translate", h.TranslateHandler)
	mux.HandleFunc("POST /pipeline/translate-reviews", h.TranslateReviewsHandler)
	mux.HandleFunc("POST /pipeline/publish", h.PublishHandler)

	mux.HandleFunc("POST /scraped/{id}/send", h.SendToCurationHandler)
	mux.HandleFunc("POST /drafts", h.CreateDraftHandler)
	mux.HandleFunc("GET /drafts", h.ListDraftsHandler)
	mux.HandleFunc("GET /drafts/stats", h.StatsHandler)
	mux.HandleFunc("GET /drafts/{id}", h.GetDraftHandler)
	mux.HandleFunc("POST /drafts/{id}/review", h.OpenForReviewHandler)
	mux.HandleFunc("POST /drafts/{id}/approve", h.ApproveHandler)
	mux.HandleFunc("POST /drafts/{id}/reject", h.RejectHandler)
	mux.HandleFunc("POST /drafts/{id}/return", h.ReturnToReviewHandler)
	mux.HandleFunc("POST /drafts/{id}/retranslate", h.RetranslateHandler)
	mux.HandleFunc("PUT /drafts/{id}/curated", h.SaveCuratedHandler)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("/", AuthMiddleware(auth, logger)(mux))

	return utils.LatencyMiddleware(logger, CORSMiddleware(root))
}

type scrapeRequest struct {
	URLs []string `json:"urls"`
}

// ScrapeHandler runs a scrape over the posted URLs, or the configured ones
// when the body names none.
func (h *Handler) ScrapeHandler(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, h.logger, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	}
	urls := req.URLs
	if len(urls) == 0 {
		urls = h.defaultURLs
	}
	if len(urls) == 0 {
		utils.RespondError(w, h.logger, "No URLs given and SCRAPE_URLS is empty", http.StatusBadRequest)
		return
	}

	h.logger.Info("[Scrape API] Starting run", zap.Int("urls", len(urls)))
	summary, err := h.pipeline.RunScrape(r.Context(), urls)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) TranslateHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limitParam(w, r, h.defaultBatchSize)
	if !ok {
		return
	}

	result, err := h.pipeline.RunTranslate(r.Context(), limit)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// TranslateReviewsHandler translates pending customer reviews, those with
// photos first.
func (h *Handler) TranslateReviewsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limitParam(w, r, h.defaultReviewBatch)
	if !ok {
		return
	}

	h.logger.Info("[Reviews API] Translating reviews", zap.Int("limit", limit))
	result, err := h.pipeline.RunTranslateReviews(r.Context(), limit)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		utils.RespondError(w, h.logger, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (h *Handler) PublishHandler(w http.ResponseWriter, r *http.Request) {
	draftID := strings.TrimSpace(r.URL.Query().Get("draft_id"))
	if draftID == "" {
		utils.RespondError(w, h.logger, "draft_id is required", http.StatusBadRequest)
		return
	}

	product, err := h.pipeline.RunPublish(r.Context(), draftID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, product)
}

// respondErr maps domain errors onto HTTP status codes.
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	utils.RespondError(w, h.logger, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, curation.ErrDraftNotFound),
		errors.Is(err, publisher.ErrDraftNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, curation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, curation.ErrInvalidTransition),
		errors.Is(err, curation.ErrStatusConflict),
		errors.Is(err, curation.ErrAlreadySent),
		errors.Is(err, curation.ErrScrapeFailed),
		errors.Is(err, publisher.ErrNotApproved):
		return http.StatusConflict
	case errors.Is(err, publisher.ErrMissingCategory),
		errors.Is(err, publisher.ErrMissingPrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, translation.ErrNoEnricher):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
