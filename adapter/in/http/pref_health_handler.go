package http

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

// PoolStats snapshots the connection pool of one backing service.
type PoolStats func() any

// HealthHandler reports the state of the backing services.
type HealthHandler struct {
	checks  map[string]HealthCheck
	pools   map[string]PoolStats
	timeout time.Duration
}

// NewHealthHandler creates a handler over named checks. A nil check is
// reported as not configured.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 5 * time.Second}
}

// WithPools adds connection pool snapshots to the /health body.
func (h *HealthHandler) WithPools(pools map[string]PoolStats) *HealthHandler {
	h.pools = pools
	return h
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

// Health always answers 200 and lists each component.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	components, healthy := h.run(c.UserContext())
	status := "ok"
	if !healthy {
		status = "degraded"
	}
	body := fiber.Map{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if len(h.pools) > 0 {
		pools := make(map[string]any, len(h.pools))
		for name, stats := range h.pools {
			pools[name] = stats()
		}
		body["pools"] = pools
	}
	return c.JSON(body)
}

// Ready answers 503 while any configured component is unhealthy.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	components, healthy := h.run(c.UserContext())
	status, code := "ready", fiber.StatusOK
	if !healthy {
		status, code = "not ready", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"checks":    components,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		check := h.checks[name]
		if check == nil {
			results[name] = "not configured"
			continue
		}
		if err := check(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		results[name] = "healthy"
	}
	return results, healthy
}
