package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/raushankrgupta/product-sourcing/curation"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/utils"
)

func (h *Handler) SendToCurationHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.pipeline.Curation().SendToCuration(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, d)
}

func (h *Handler) CreateDraftHandler(w http.ResponseWriter, r *http.Request) {
	var req curation.ManualDraft
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, h.logger, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	d, err := h.pipeline.Curation().CreateDraft(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, d)
}

// ListDraftsHandler accepts ?status=a,b and ?limit=N.
func (h *Handler) ListDraftsHandler(w http.ResponseWriter, r *http.Request) {
	var statuses []models.DraftStatus
	if s := r.URL.Query().Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, models.DraftStatus(part))
			}
		}
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			utils.RespondError(w, h.logger, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	drafts, err := h.pipeline.Curation().List(r.Context(), statuses, limit)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if drafts == nil {
		drafts = []models.ProductDraft{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"drafts": drafts, "total": len(drafts)})
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.Curation().Stats(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetDraftHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.pipeline.Curation().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, d)
}

func (h *Handler) OpenForReviewHandler(w http.ResponseWriter, r *http.Request) {
	h.respondDraft(w)(h.pipeline.Curation().OpenForReview(r.Context(), r.PathValue("id")))
}

func (h *Handler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	reviewer := ReviewerFromContext(r.Context())
	h.respondDraft(w)(h.pipeline.Curation().Approve(r.Context(), r.PathValue("id"), reviewer))
}

func (h *Handler) RejectHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, h.logger, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	}
	reviewer := ReviewerFromContext(r.Context())
	h.respondDraft(w)(h.pipeline.Curation().Reject(r.Context(), r.PathValue("id"), reviewer, req.Reason))
}

func (h *Handler) ReturnToReviewHandler(w http.ResponseWriter, r *http.Request) {
	h.respondDraft(w)(h.pipeline.Curation().ReturnToReview(r.Context(), r.PathValue("id")))
}

func (h *Handler) RetranslateHandler(w http.ResponseWriter, r *http.Request) {
	h.respondDraft(w)(h.pipeline.Curation().Retranslate(r.Context(), r.PathValue("id")))
}

func (h *Handler) SaveCuratedHandler(w http.ResponseWriter, r *http.Request) {
	var fields models.CuratedFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		utils.RespondError(w, h.logger, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	h.respondDraft(w)(h.pipeline.Curation().SaveCuratedFields(r.Context(), r.PathValue("id"), fields))
}

func (h *Handler) respondDraft(w http.ResponseWriter) func(*models.ProductDraft, error) {
	return func(d *models.ProductDraft, err error) {
		if err != nil {
			h.respondErr(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, d)
	}
}
