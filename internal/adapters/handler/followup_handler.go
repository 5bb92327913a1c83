package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/export"
	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// FollowUpHandler serves the NCD follow-up roster
type FollowUpHandler struct {
	followUps ports.FollowUpService
	logger    *zap.Logger
}

func NewFollowUpHandler(followUps ports.FollowUpService, logger *zap.Logger) *FollowUpHandler {
	return &FollowUpHandler{followUps: followUps, logger: logger}
}

func (h *FollowUpHandler) Routes(r chi.Router) {
	r.Get("/followups", h.List)
	r.Get("/followups/export.xlsx", h.Export)
	r.Post("/followups/{id}/toggle", h.Toggle)
}

// List handles GET /followups?filter=all|due-today|overdue
func (h *FollowUpHandler) List(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusOK
	defer func() { logStructured(h.logger, reqID, r, "/followups", status, time.Since(start)) }()

	items, err := h.followUps.List(r.Context(), domain.ParseFollowUpFilter(r.URL.Query().Get("filter")))
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeJSON(w, status, items)
}

// Toggle handles POST /followups/{id}/toggle
func (h *FollowUpHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusOK
	defer func() { logStructured(h.logger, reqID, r, "/followups/{id}/toggle", status, time.Since(start)) }()

	item, err := h.followUps.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeJSON(w, status, item)
}

// Export handles GET /followups/export.xlsx
func (h *FollowUpHandler) Export(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusOK
	defer func() { logStructured(h.logger, reqID, r, "/followups/export.xlsx", status, time.Since(start)) }()

	items, err := h.followUps.List(r.Context(), domain.ParseFollowUpFilter(r.URL.Query().Get("filter")))
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	data, err := export.FollowUpRoster(items)
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeAttachment(w, "followups.xlsx", data)
}
