package httpapi

import (
	"net/http"
	"strings"

	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/ingest"
	"heartguard-alerts/internal/service"

	"go.uber.org/zap"
)

// AlertHandler 告警 Handler
type AlertHandler struct {
	alertService service.AlertService
	normalizer   *ingest.Normalizer
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewAlertHandler(alertService service.AlertService, normalizer *ingest.Normalizer, maxBodyBytes int64, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		normalizer:   normalizer,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// ListOrgAlerts GET /api/v1/orgs/{org}/alerts?status=&level=
func (h *AlertHandler) ListOrgAlerts(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")
	if !callerFrom(r.Context()).allows(orgID) {
		forbidden(w, orgID)
		return
	}
	alerts, err := h.alertService.ListAlerts(r.Context(), service.ListAlertsRequest{
		OrgID:  orgID,
		Filter: parseFilter(r),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}

// ListPatientAlerts GET /api/v1/patients/{pid}/alerts?status=&level=
func (h *AlertHandler) ListPatientAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alertService.ListAlerts(r.Context(), service.ListAlertsRequest{
		OrgID:     callerFrom(r.Context()).OrgID,
		PatientID: r.PathValue("pid"),
		Filter:    parseFilter(r),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}

// Transition POST /api/v1/alerts/{id}/{acknowledge|resolve|close}
func (h *AlertHandler) Transition(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body domain.TransitionRequest
		if err := readBodyJSON(r, h.maxBodyBytes, &body); err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		if err := body.Validate(); err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		req := service.TransitionRequest{
			OrgID:       callerFrom(r.Context()).OrgID,
			AlertID:     r.PathValue("id"),
			ActorUserID: body.ActorUserID,
			Outcome:     string(body.Outcome),
			Notes:       body.Notes,
		}

		var (
			alert domain.Alert
			err   error
		)
		switch action {
		case "acknowledge":
			alert, err = h.alertService.Acknowledge(r.Context(), req)
		case "resolve":
			alert, err = h.alertService.Resolve(r.Context(), req)
		case "close":
			alert, err = h.alertService.Close(r.Context(), req)
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(alert))
	}
}

// ValidateTruePositive POST /api/v1/orgs/{org}/alerts/{id}/validate/true-positive
func (h *AlertHandler) ValidateTruePositive(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")
	if !callerFrom(r.Context()).allows(orgID) {
		forbidden(w, orgID)
		return
	}
	var body domain.LabelRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	draft, err := body.Draft()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	label, err := h.alertService.ValidateTruePositive(r.Context(), service.ValidateTruePositiveRequest{
		OrgID:   orgID,
		AlertID: r.PathValue("id"),
		Draft:   draft,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(label))
}

// ValidateFalsePositive POST /api/v1/alerts/{id}/validate/false-positive
func (h *AlertHandler) ValidateFalsePositive(w http.ResponseWriter, r *http.Request) {
	var body domain.FalsePositiveRequest
	if err := readBodyJSON(r, h.maxBodyBytes, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	alert, err := h.alertService.ValidateFalsePositive(r.Context(), service.ValidateFalsePositiveRequest{
		OrgID:       callerFrom(r.Context()).OrgID,
		AlertID:     r.PathValue("id"),
		ActorUserID: body.ActorUserID,
		Reason:      body.Reason,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(alert))
}

// ingestReport 解码报告（跳过/回退计数）
type ingestReport struct {
	Records        int            `json:"records"`
	SkippedRecords int            `json:"skipped_records"`
	SkippedFields  int            `json:"skipped_fields"`
	Fallbacks      map[string]int `json:"fallbacks,omitempty"`
	Truncated      bool           `json:"truncated"`
	Warnings       []string       `json:"warnings,omitempty"`
}

type ingestResponse struct {
	*service.IngestAlertsResponse
	Report ingestReport `json:"report"`
}

// Ingest POST /api/v1/alerts
// Content-Type 含 xml 时按 legacy XML 解析，否则按 JSON（单条或批量）
func (h *AlertHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, h.maxBodyBytes)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var (
		alerts []domain.Alert
		rep    ingest.Report
	)
	if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "xml") {
		alerts, rep, err = h.normalizer.DecodeAlertsXML(body)
	} else {
		alerts, rep, err = h.normalizer.DecodeAlertsJSON(body)
		if err != nil {
			// 单个告警对象
			var one domain.Alert
			if one, rep, err = h.normalizer.DecodeAlertJSON(body); err == nil {
				alerts = []domain.Alert{one}
			}
		}
	}
	if err != nil {
		writeError(w, h.logger, r, domain.Failuref(domain.KindValidation, "unreadable alert body: %v", err))
		return
	}
	if !rep.Clean() {
		h.logger.Info("Alert ingest normalized with omissions",
			zap.Int("records", rep.Records),
			zap.Int("skipped_records", rep.SkippedRecords),
			zap.Int("skipped_fields", rep.SkippedFields),
			zap.Bool("truncated", rep.Truncated),
		)
	}

	resp, err := h.alertService.Ingest(r.Context(), service.IngestAlertsRequest{
		OrgID:  callerFrom(r.Context()).OrgID,
		Alerts: alerts,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ingestResponse{
		IngestAlertsResponse: resp,
		Report: ingestReport{
			Records:        rep.Records,
			SkippedRecords: rep.SkippedRecords,
			SkippedFields:  rep.SkippedFields,
			Fallbacks:      rep.Fallbacks,
			Truncated:      rep.Truncated,
			Warnings:       rep.Warnings,
		},
	}))
}
