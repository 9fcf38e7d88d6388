package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smart-maintenance/internal/audit"
	"smart-maintenance/internal/auth"
	maintenanceapp "smart-maintenance/internal/maintenance/application"
	maintenance "smart-maintenance/internal/maintenance/domain"
	"smart-maintenance/internal/maintenance/interfaces/export"
	"smart-maintenance/internal/observability/metrics"
	plan "smart-maintenance/internal/plan/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

const (
	timeLayout          = time.RFC3339
	defaultHistoryLimit = 100
	maxBodyBytes        = 4 << 20
)

// Runner executes maintenance runs.
type Runner interface {
	RunWithOptions(ctx context.Context, sample telemetry.Sample, opts maintenanceapp.RunOptions) (*maintenance.Report, error)
	RunBatch(ctx context.Context, samples []telemetry.Sample, opts maintenanceapp.RunOptions) ([]maintenanceapp.BatchItem, error)
}

// Handler provides maintenance HTTP endpoints.
type Handler struct {
	runner  Runner
	reports maintenance.ReportRepository
	history telemetry.HistoryStore
	audit   audit.Logger
	now     func() time.Time
}

// Option configures the handler.
type Option func(*Handler)

// WithAuditLogger records runs, batches and exports.
func WithAuditLogger(logger audit.Logger) Option {
	return func(h *Handler) {
		h.audit = logger
	}
}

// NewHandler constructs a handler. history may be nil, which disables the history endpoint.
func NewHandler(runner Runner, reports maintenance.ReportRepository, history telemetry.HistoryStore, opts ...Option) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("maintenance handler: nil runner")
	}
	if reports == nil {
		return nil, errors.New("maintenance handler: nil report repository")
	}
	h := &Handler{
		runner:  runner,
		reports: reports,
		history: history,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP handles /api/v1/maintenance and /api/v1/devices subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/maintenance/runs":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRun(w, r)
	case path == "/api/v1/maintenance/batches":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleBatch(w, r)
	case path == "/api/v1/maintenance/reports":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(path, "/api/v1/maintenance/reports/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleReport(w, r, strings.TrimPrefix(path, "/api/v1/maintenance/reports/"))
	case strings.HasPrefix(path, "/api/v1/devices/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleHistory(w, r, strings.TrimPrefix(path, "/api/v1/devices/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type sampleRequest struct {
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature"`
	Pressure    *float64  `json:"pressure"`
	CPULoad     *float64  `json:"cpu_load"`
}

func (s sampleRequest) toSample(now time.Time) telemetry.Sample {
	at := s.Timestamp
	if at.IsZero() {
		at = now
	}
	return telemetry.Sample{
		DeviceID:    strings.TrimSpace(s.DeviceID),
		Timestamp:   at.UTC(),
		Temperature: s.Temperature,
		Pressure:    s.Pressure,
		CPULoad:     s.CPULoad,
	}
}

type runRequest struct {
	sampleRequest
	AlertThreshold *float64 `json:"alert_threshold"`
	TopK           int      `json:"top_k"`
}

type batchRequest struct {
	Samples        []sampleRequest `json:"samples"`
	AlertThreshold *float64        `json:"alert_threshold"`
	TopK           int             `json:"top_k"`
}

type batchItemResponse struct {
	Index    int                 `json:"index"`
	DeviceID string              `json:"device_id"`
	Report   *maintenance.Report `json:"report,omitempty"`
	Error    string              `json:"error,omitempty"`
	Stage    maintenance.State   `json:"stage,omitempty"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	opts, err := runOptions(r, req.AlertThreshold, req.TopK)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := h.runner.RunWithOptions(r.Context(), req.sampleRequest.toSample(h.now()), opts)
	if err != nil {
		respondRunError(w, err)
		return
	}
	h.logAudit(r, audit.ActionRun, report.ID, report.DeviceID, map[string]any{
		"risk_score":      report.Assessment.RiskScore,
		"alert_triggered": report.Alert.Triggered,
	})
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.Samples) == 0 {
		http.Error(w, "samples is required", http.StatusBadRequest)
		return
	}
	opts, err := runOptions(r, req.AlertThreshold, req.TopK)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	now := h.now()
	samples := make([]telemetry.Sample, 0, len(req.Samples))
	for _, item := range req.Samples {
		samples = append(samples, item.toSample(now))
	}
	items, err := h.runner.RunBatch(r.Context(), samples, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]batchItemResponse, 0, len(items))
	failed := 0
	for _, item := range items {
		resp := batchItemResponse{Index: item.Index, DeviceID: item.DeviceID, Report: item.Report}
		if item.Err != nil {
			failed++
			resp.Error = item.Err.Error()
			var runErr *maintenance.RunError
			if errors.As(item.Err, &runErr) {
				resp.Stage = runErr.Stage
			}
		}
		out = append(out, resp)
	}
	h.logAudit(r, audit.ActionBatch, "", "", map[string]any{"samples": len(items), "failed": failed})
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := maintenance.ReportFilter{
		TenantID: auth.TenantIDFromContext(r.Context()),
		DeviceID: r.URL.Query().Get("device_id"),
	}
	var err error
	if filter.From, err = parseOptionalTime(r, "from"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.To, err = parseOptionalTime(r, "to"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	if filter.Limit, err = parseOptionalInt(r, "limit"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.reports.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []maintenance.Report{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	if parts[0] == "" || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	report, err := h.reports.Get(r.Context(), parts[0])
	if err != nil {
		if errors.Is(err, maintenance.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := auth.EnsureTenant(auth.TenantIDFromContext(r.Context()), report.TenantID); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, report)
		return
	}
	switch parts[1] {
	case "export.pdf":
		h.export(w, r, report, "pdf", "application/pdf", export.BuildReportPDF)
	case "export.xlsx":
		h.export(w, r, report, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.BuildReportXLSX)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, report *maintenance.Report, format, contentType string, build func(*maintenance.Report) ([]byte, error)) {
	start := time.Now()
	data, err := build(report)
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
	h.logAudit(r, audit.ActionExport, report.ID, report.DeviceID, map[string]any{"format": format})
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"report-"+report.ID+"."+format+"\"")
	_, _ = w.Write(data)
}

type historyPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature"`
	Pressure    *float64  `json:"pressure"`
	CPULoad     *float64  `json:"cpu_load"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "history" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if h.history == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	samples, err := h.history.Recent(r.Context(), parts[0], limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	points := make([]historyPoint, 0, len(samples))
	for _, sample := range samples {
		points = append(points, historyPoint{
			Timestamp:   sample.Timestamp,
			Temperature: finite(sample.Temperature),
			Pressure:    finite(sample.Pressure),
			CPULoad:     finite(sample.CPULoad),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": parts[0], "samples": points})
}

func (h *Handler) logAudit(r *http.Request, action, reportID, deviceID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.audit.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "maintenance_report",
		ResourceID:   reportID,
		DeviceID:     deviceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// finite drops NaN and Inf, which encoding/json rejects.
func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

func runOptions(r *http.Request, threshold *float64, topK int) (maintenanceapp.RunOptions, error) {
	if threshold != nil && (math.IsNaN(*threshold) || *threshold < 0 || *threshold > 1) {
		return maintenanceapp.RunOptions{}, errors.New("alert_threshold must be within [0,1]")
	}
	if topK < 0 {
		return maintenanceapp.RunOptions{}, errors.New("top_k must be >= 0")
	}
	return maintenanceapp.RunOptions{
		TenantID:       auth.TenantIDFromContext(r.Context()),
		AlertThreshold: threshold,
		TopK:           topK,
	}, nil
}

func respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, telemetry.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, plan.ErrUnknownFailureMode):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseOptionalTime(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func parseOptionalInt(r *http.Request, key string) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return parsed, nil
}
