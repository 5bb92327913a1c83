package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/export"
	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// ReportHandler serves the family directory
type ReportHandler struct {
	reports ports.ReportService
	logger  *zap.Logger
}

func NewReportHandler(reports ports.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

func (h *ReportHandler) Routes(r chi.Router) {
	r.Get("/families", h.ListFamilies)
	r.Get("/families/export.xlsx", h.ExportFamilies)
}

// parseFamilyFilter reads q, tab, risk, village, pregnancy and registered_on
func parseFamilyFilter(r *http.Request) (domain.FamilyFilter, error) {
	q := r.URL.Query()
	filter := domain.FamilyFilter{
		Query:   q.Get("q"),
		Tab:     domain.ParseDirectoryTab(q.Get("tab")),
		Village: strings.TrimSpace(q.Get("village")),
	}
	fields := map[string]string{}
	if raw := q.Get("risk"); raw != "" && !strings.EqualFold(raw, "all") {
		level, err := domain.ParseRiskLevel(raw)
		if err != nil {
			fields["risk"] = "must be Low, Moderate or High"
		} else {
			filter.Risk = &level
		}
	}
	switch p := domain.PregnancyStatusFilter(strings.ToLower(strings.TrimSpace(q.Get("pregnancy")))); p {
	case domain.PregnancyAny, "all":
	case domain.PregnancyPresent, domain.PregnancyAbsent:
		filter.Pregnancy = p
	default:
		fields["pregnancy"] = "must be has-pregnant-woman or no-pregnant-woman"
	}
	if raw := q.Get("registered_on"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields["registered_on"] = "must be a date (" + dateLayout + ")"
		} else {
			filter.RegisteredOn = &day
		}
	}
	if len(fields) > 0 {
		return filter, domain.NewValidationError("invalid directory filter", fields)
	}
	return filter, nil
}

// ListFamilies handles GET /families
func (h *ReportHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusOK
	defer func() { logStructured(h.logger, reqID, r, "/families", status, time.Since(start)) }()

	rows, err := h.directory(r)
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeJSON(w, status, rows)
}

// ExportFamilies handles GET /families/export.xlsx with the same filters as ListFamilies
func (h *ReportHandler) ExportFamilies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusOK
	defer func() { logStructured(h.logger, reqID, r, "/families/export.xlsx", status, time.Since(start)) }()

	rows, err := h.directory(r)
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	data, err := export.FamilyDirectory(rows)
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeAttachment(w, "families.xlsx", data)
}

func (h *ReportHandler) directory(r *http.Request) ([]domain.FamilySummary, error) {
	filter, err := parseFamilyFilter(r)
	if err != nil {
		return nil, err
	}
	return h.reports.Directory(r.Context(), filter)
}

func writeAttachment(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
