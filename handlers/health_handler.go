package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/trivia-duel/services"
)

const healthTimeout = 2 * time.Second

// HealthCheck пингует одну зависимость.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks      map[string]HealthCheck
	connections func() int
}

func NewHealthHandler(checks map[string]HealthCheck, connections func() int) *HealthHandler {
	return &HealthHandler{checks: checks, connections: connections}
}

// Health godoc
// @Summary Проверка зависимостей
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /healthz [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		status = make(map[string]string, len(h.checks))
	)
	var g errgroup.Group
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status[name] = err.Error()
				return err
			}
			status[name] = "ok"
			return nil
		})
	}
	healthy := g.Wait() == nil

	body := jsonResponse{"success": healthy, "checks": status}
	if h.connections != nil {
		body["websocket_connections"] = h.connections()
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
		body["code"] = services.CodeStoreUnavailable
	}
	if err := writeJSON(w, code, body, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
