package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// SnapshotInfo is the store view the health endpoint reports on.
type SnapshotInfo interface {
	Len() int
}

// HealthHandler serves liveness and readiness information.
type HealthHandler struct {
	snapshot SnapshotInfo
	started  time.Time
	version  string
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(snapshot SnapshotInfo, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		snapshot: snapshot,
		started:  time.Now(),
		version:  version,
		logger:   logger,
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SnapshotLines int    `json:"snapshot_lines"`
}

// Get reports service health. An empty snapshot is degraded, not down: the
// server can still answer requests, every window just comes back suppressed.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.snapshot != nil {
		resp.SnapshotLines = h.snapshot.Len()
		if resp.SnapshotLines == 0 {
			resp.Status = "degraded"
		}
	}

	render.JSON(w, r, resp)
}
