package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

type HealthChecker interface {
	Health(ctx context.Context) error
}

type namedCheck struct {
	name    string
	checker HealthChecker
}

// HealthHandler reports the state of the backing stores. Every registered
// check must pass for the service to be ready.
type HealthHandler struct {
	checks []namedCheck
	now    func() time.Time
}

func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	h := &HealthHandler{now: time.Now}
	return h.WithCheck("postgres", db).WithCheck("redis", redis)
}

// WithCheck registers an additional dependency. Nil checkers are ignored.
func (h *HealthHandler) WithCheck(name string, checker HealthChecker) *HealthHandler {
	if checker != nil {
		h.checks = append(h.checks, namedCheck{name: name, checker: checker})
	}
	return h
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

func (h *HealthHandler) run(ctx context.Context) (map[string]error, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(map[string]error, len(h.checks))
	ok := true
	for _, c := range h.checks {
		err := c.checker.Health(ctx)
		results[c.name] = err
		if err != nil {
			ok = false
		}
	}
	return results, ok
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	results, ok := h.run(r.Context())

	response := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string, len(results)),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	for name, err := range results {
		if err != nil {
			response.Checks[name] = "unhealthy: " + err.Error()
			continue
		}
		response.Checks[name] = "healthy"
	}

	status := http.StatusOK
	if !ok {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.run(r.Context()); !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
