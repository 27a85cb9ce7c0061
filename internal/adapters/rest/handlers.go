package rest

import (
	"net/http"

	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/port"
)

// OpsHandlers serves the operational read surface: liveness, the last
// finished run and its block activity.
type OpsHandlers struct {
	history     port.RunHistoryPort
	serviceName string
}

// NewOpsHandlers creates the handler set for the ops endpoints.
func NewOpsHandlers(history port.RunHistoryPort, serviceName string) *OpsHandlers {
	return &OpsHandlers{
		history:     history,
		serviceName: serviceName,
	}
}

// HandleHealth serves GET /api/v1/health.
func (h *OpsHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, HealthResponseDTO{
		Status:  "ok",
		Service: h.serviceName,
	})
}

// HandleLatestRun serves GET /api/v1/runs/latest.
func (h *OpsHandlers) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleLatestRun"})

	summary, err := h.history.LatestRun(r.Context())
	if err != nil {
		logger.Error("Failed to load latest run", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to load latest run")
		return
	}
	if summary == nil {
		WriteJSONError(w, http.StatusNotFound, "No completed runs yet")
		return
	}

	RespondWithJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}

// HandleRecentBlocks serves GET /api/v1/blocks.
func (h *OpsHandlers) HandleRecentBlocks(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleRecentBlocks"})

	summary, err := h.history.LatestRun(r.Context())
	if err != nil {
		logger.Error("Failed to load latest run", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to load block activity")
		return
	}
	if summary == nil {
		WriteJSONError(w, http.StatusNotFound, "No completed runs yet")
		return
	}

	RespondWithJSON(w, http.StatusOK, toBlocksDTO(summary))
}
