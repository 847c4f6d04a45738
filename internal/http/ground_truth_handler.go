package httpapi

import (
	"net/http"
	"strconv"

	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/export"
	"heartguard-alerts/internal/service"

	"go.uber.org/zap"
)

// GroundTruthHandler 真值标注与准确率 Handler
type GroundTruthHandler struct {
	groundTruthService service.GroundTruthService
	accuracyService    service.AccuracyService
	maxBodyBytes       int64
	logger             *zap.Logger
}

func NewGroundTruthHandler(gt service.GroundTruthService, acc service.AccuracyService, maxBodyBytes int64, logger *zap.Logger) *GroundTruthHandler {
	return &GroundTruthHandler{
		groundTruthService: gt,
		accuracyService:    acc,
		maxBodyBytes:       maxBodyBytes,
		logger:             logger,
	}
}

// CreateManual POST /api/v1/ground-truth
func (h *GroundTruthHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
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
	label, err := h.groundTruthService.CreateManual(r.Context(), draft)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(label))
}

// ListByPatient GET /api/v1/patients/{pid}/ground-truth
func (h *GroundTruthHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	labels, err := h.groundTruthService.ListByPatient(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(labels))
}

// Export GET /api/v1/patients/{pid}/ground-truth/export
func (h *GroundTruthHandler) Export(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("pid")
	data, err := h.groundTruthService.Export(r.Context(), patientID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", attachment("ground-truth-"+patientID+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write export", zap.String("patient_id", patientID), zap.Error(err))
	}
}

// Accuracy GET /api/v1/accuracy?start=&end= (RFC3339，两端可选)
func (h *GroundTruthHandler) Accuracy(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	stats, err := h.accuracyService.Stats(r.Context(), domain.Window{Start: start, End: end})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}
