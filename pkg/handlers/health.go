package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Model     string `json:"model,omitempty"`
	GoVersion string `json:"go_version"`
	Hostname  string `json:"hostname"`
}

// HealthHandler serves liveness, version and progress endpoints next to the
// metrics of a running command.
type HealthHandler struct {
	version  string
	model    string
	progress *Progress
	logger   *zap.Logger
}

// NewHealthHandler creates a HealthHandler. progress may be nil.
func NewHealthHandler(version, model string, progress *Progress, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{version: version, model: model, progress: progress, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.HandleFunc("GET /progress", h.Progress)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:    "ok",
		Version:   h.version,
		Service:   "ekaya-datagen",
		Model:     h.model,
		GoVersion: runtime.Version(),
		Hostname:  hostname,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Progress handles GET /progress requests.
func (h *HealthHandler) Progress(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		http.Error(w, "no command is running", http.StatusNotFound)
		return
	}
	if err := WriteJSON(w, http.StatusOK, h.progress.Snapshot()); err != nil {
		h.logger.Error("Failed to encode progress response", zap.Error(err))
	}
}
