// README: Run status handlers: coverage state, boundary events, latest metric record.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rsumon/internal/modules/coverage"
	"rsumon/internal/sink"
)

type StatusSource interface {
	Snapshot() sink.StatusSnapshot
}

type StatusHandler struct {
	status StatusSource
}

func NewStatusHandler(status StatusSource) *StatusHandler {
	return &StatusHandler{status: status}
}

func (h *StatusHandler) Status(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.status.Snapshot())
}

func (h *StatusHandler) Events(c *gin.Context) {
	snap := h.status.Snapshot()
	events := snap.Events
	if events == nil {
		events = []coverage.CoverageEvent{}
	}
	writeJSON(c, http.StatusOK, gin.H{"run_id": snap.RunID, "events": events})
}

func (h *StatusHandler) LatestMetric(c *gin.Context) {
	snap := h.status.Snapshot()
	if snap.Latest == nil {
		writeError(c, http.StatusNotFound, "no samples yet")
		return
	}
	writeJSON(c, http.StatusOK, snap.Latest)
}
