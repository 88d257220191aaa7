// Package health answers the probe endpoints of a poolpay deployment: a
// liveness ping, a readiness report over registered dependency checks, and a
// status summary with build and uptime detail. The readiness report gates
// traffic until every dependency the settlement path needs (the database when
// postgres persistence is on) answers.
package health

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"poolpay/pkg/platform/httputil"
)

// Version is stamped at build time via ldflags.
var Version = "dev"

// CheckFunc probes one dependency. Nil means the dependency can serve
// settlements; an error carries the reason it cannot.
type CheckFunc func() error

// Handler serves the probe routes.
type Handler struct {
	environment string
	startedAt   time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New builds a probe handler for the named environment.
func New(environment string) *Handler {
	return &Handler{
		environment: environment,
		startedAt:   time.Now(),
		checks:      make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a named dependency probe to the readiness report.
// Registering the same name again replaces the earlier probe.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Register mounts the probe routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// LivenessResponse is the response body for the liveness ping.
type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness answers the liveness ping. It returns 200 whenever the
// process is up, regardless of dependency state.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{
		Status: "alive",
	})
}

// ReadinessResponse reports every registered dependency check by name.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness runs the registered dependency probes and answers 503 when
// any of them fails, so purchases are not routed at a host that cannot settle
// them.
func (h *Handler) HandleReadiness(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	maps.Copy(checks, h.checks)
	h.mu.RUnlock()

	response := ReadinessResponse{
		Status: "ready",
		Checks: make(map[string]string, len(checks)),
	}
	ready := true
	for name, check := range checks {
		if err := check(); err != nil {
			response.Checks[name] = "down: " + err.Error()
			ready = false
			continue
		}
		response.Checks[name] = "up"
	}

	if !ready {
		response.Status = "not_ready"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

// StatusResponse summarizes the running deployment.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// HandleStatus answers with the build version, environment, and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
