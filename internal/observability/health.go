package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker tracks liveness and readiness of the indexer.
// Readiness requires every registered dependency (store, nats) to be up
// and the checkpoint to be restored.
type HealthChecker struct {
	storeReady atomic.Bool
	natsReady  atomic.Bool
	restored   atomic.Bool
	halted     atomic.Bool
	startTime  time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

func (h *HealthChecker) SetStoreReady(ready bool) { h.storeReady.Store(ready) }
func (h *HealthChecker) SetNATSReady(ready bool)  { h.natsReady.Store(ready) }
func (h *HealthChecker) SetRestored(done bool)    { h.restored.Store(done) }

// SetHalted marks the pipeline as stopped by a fatal fault. A halted
// indexer stays alive for inspection but is never ready again.
func (h *HealthChecker) SetHalted() { h.halted.Store(true) }

// IsReady returns whether the service is ready.
func (h *HealthChecker) IsReady() bool {
	return h.storeReady.Load() && h.natsReady.Load() && h.restored.Load() && !h.halted.Load()
}

// LivenessHandler always returns 200 while the process runs.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
		"halted": h.halted.Load(),
	})
}

// ReadinessHandler returns 200 when ready, 503 otherwise.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.IsReady() {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ready",
		})
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "not_ready",
		"store":    h.storeReady.Load(),
		"nats":     h.natsReady.Load(),
		"restored": h.restored.Load(),
		"halted":   h.halted.Load(),
	})
}
