package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"shipboard-health/internal/assessment/application"
	assessment "shipboard-health/internal/assessment/domain"
	"shipboard-health/internal/assessment/interfaces"
	"shipboard-health/internal/audit"
	"shipboard-health/internal/auth"
	equipment "shipboard-health/internal/equipment/domain"
	"shipboard-health/internal/observability/metrics"
	"shipboard-health/internal/telemetry/domain"
)

const (
	timeLayout      = time.RFC3339
	equipmentPrefix = "/api/v1/equipment/"
	reportsPath     = "/api/v1/reports"
	reportsPrefix   = "/api/v1/reports/"
	maxBodyBytes    = 1 << 20
)

// Handler provides assessment HTTP endpoints.
type Handler struct {
	service          *application.Service
	equipmentChecker auth.EquipmentTenantChecker
	auditLogger      audit.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithAuditLogger records report generation and exports.
func WithAuditLogger(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditLogger = logger
	}
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, equipmentChecker auth.EquipmentTenantChecker, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, errors.New("assessment handler: nil service")
	}
	h := &Handler{service: service, equipmentChecker: equipmentChecker}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP handles /api/v1/equipment/{id}/... and /api/v1/reports routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, equipmentPrefix):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleEquipment(w, r)
	case r.URL.Path == reportsPath:
		switch r.Method {
		case http.MethodGet:
			h.handleListReports(w, r)
		case http.MethodPost:
			h.handleGenerateReport(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, reportsPrefix):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleReport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleEquipment(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, equipmentPrefix), "/")
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	equipmentID, action := parts[0], parts[1]
	if err := h.ensureTenant(r, equipmentID); err != nil {
		respondTenantError(w, err)
		return
	}
	start, end, err := h.window(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tenantID := auth.TenantIDFromContext(r.Context())
	var result any
	switch action {
	case "soh":
		result, err = h.service.CalculateSOH(r.Context(), tenantID, equipmentID, start, end, nil)
	case "health-index":
		result, err = h.service.EvaluateHealthIndex(r.Context(), tenantID, equipmentID, start, end, nil)
	case "diagnosis":
		result, err = h.service.DiagnoseFaults(r.Context(), tenantID, equipmentID, start, end)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type generateReportRequest struct {
	EquipmentID        string                                 `json:"equipment_id"`
	Start              time.Time                              `json:"start"`
	End                time.Time                              `json:"end"`
	GeneratedBy        string                                 `json:"generated_by"`
	SOHWeights         map[telemetry.MetricType]float64       `json:"soh_weights"`
	HealthIndexWeights *assessment.HealthIndexWeightOverrides `json:"health_index_weights"`
}

func (h *Handler) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.EquipmentID == "" {
		http.Error(w, "equipment_id is required", http.StatusBadRequest)
		return
	}
	if err := h.ensureTenant(r, req.EquipmentID); err != nil {
		respondTenantError(w, err)
		return
	}
	if req.Start.IsZero() && req.End.IsZero() {
		req.Start, req.End = h.service.DefaultWindow()
	}
	generatedBy := req.GeneratedBy
	if generatedBy == "" {
		generatedBy = auth.SubjectFromContext(r.Context())
	}

	report, err := h.service.GenerateReport(r.Context(), application.ReportRequest{
		TenantID:           auth.TenantIDFromContext(r.Context()),
		EquipmentID:        req.EquipmentID,
		Start:              req.Start.UTC(),
		End:                req.End.UTC(),
		GeneratedBy:        generatedBy,
		SOHWeights:         req.SOHWeights,
		HealthIndexWeights: req.HealthIndexWeights,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	h.logAudit(r, report, audit.ActionReportGenerate, map[string]any{
		"start":      report.StartTime,
		"end":        report.EndTime,
		"risk_level": report.Diagnosis.FaultRiskLevel,
	})
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	equipmentID := r.URL.Query().Get("equipment_id")
	if equipmentID == "" {
		http.Error(w, "equipment_id is required", http.StatusBadRequest)
		return
	}
	from, err := parseOptionalTime(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseOptionalTime(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.ensureTenant(r, equipmentID); err != nil {
		respondTenantError(w, err)
		return
	}

	list, err := h.service.ListReports(r.Context(), equipmentID, from, to)
	if err != nil {
		respondError(w, err)
		return
	}
	if list == nil {
		list = []assessment.Report{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, reportsPrefix), "/")
	if len(parts) == 0 || len(parts) > 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	report, err := h.service.GetReport(r.Context(), parts[0])
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.ensureReportTenant(r, report); err != nil {
		respondTenantError(w, err)
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, report)
		return
	}

	switch parts[1] {
	case "export.xlsx":
		h.export(w, r, report, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", interfaces.BuildReportXLSX)
	case "export.pdf":
		h.export(w, r, report, "pdf", "application/pdf", interfaces.BuildReportPDF)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, report *assessment.Report, format, contentType string, build func(*assessment.Report) ([]byte, error)) {
	began := time.Now()
	data, err := build(report)
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(began))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(began))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"assessment-"+report.ID+"."+format+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, report, audit.ActionReportExport, map[string]any{"format": format})
}

func (h *Handler) logAudit(r *http.Request, report *assessment.Report, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: audit.ResourceReport,
		ResourceID:   report.ID,
		EquipmentID:  report.EquipmentID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func (h *Handler) window(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	if query.Get("from") == "" && query.Get("to") == "" {
		start, end := h.service.DefaultWindow()
		return start, end, nil
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func (h *Handler) ensureTenant(r *http.Request, equipmentID string) error {
	tenantID := auth.TenantIDFromContext(r.Context())
	if h.equipmentChecker == nil || tenantID == "" || equipmentID == "" {
		return nil
	}
	return h.equipmentChecker.EnsureEquipmentTenant(r.Context(), tenantID, equipmentID)
}

func (h *Handler) ensureReportTenant(r *http.Request, report *assessment.Report) error {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && report.TenantID != "" && report.TenantID != tenantID {
		return auth.ErrTenantMismatch
	}
	return h.ensureTenant(r, report.EquipmentID)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assessment.ErrNoData),
		errors.Is(err, assessment.ErrInvalidTimeRange),
		errors.Is(err, assessment.ErrEmptyEquipmentID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, assessment.ErrReportNotFound),
		errors.Is(err, equipment.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func parseOptionalTime(r *http.Request, key string) (time.Time, error) {
	if r.URL.Query().Get(key) == "" {
		return time.Time{}, nil
	}
	return parseTimeQuery(r, key)
}
