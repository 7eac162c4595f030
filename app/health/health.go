// Package health reports the health of an Oblivion node.
//
// The checker always inspects the state machine (committed height and halt
// status) and runs any registered probes, such as the receipt indexer or the
// telemetry exporter. Results are served on:
//   - /health - liveness
//   - /health/ready - readiness for load balancers
//   - /health/detailed - every component, bypassing the cache
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Node is the state machine being checked.
type Node interface {
	Height() int64
	Halted() error
}

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

type probe struct {
	name     string
	fn       Probe
	detailed bool
}

// Checker performs health checks on the node and its dependencies
type Checker struct {
	logger  log.Logger
	node    Node
	version string

	maxResponseTime time.Duration

	mu            sync.RWMutex
	probes        []probe
	lastCheck     time.Time
	cachedHealth  *HealthCheck
	cacheDuration time.Duration
}

// Config holds configuration for the health checker
type Config struct {
	// MaxResponseTime bounds each probe; probes slower than half of it are degraded
	MaxResponseTime time.Duration `mapstructure:"max_response_time"`

	// CacheDuration is how long to cache health check results
	CacheDuration time.Duration `mapstructure:"cache_duration"`
}

// DefaultConfig returns the default health check configuration
func DefaultConfig() Config {
	return Config{
		MaxResponseTime: 5 * time.Second,
		CacheDuration:   5 * time.Second,
	}
}

// NewChecker creates a new health checker
func NewChecker(logger log.Logger, cfg Config, node Node, version string) (*Checker, error) {
	if node == nil {
		return nil, fmt.Errorf("node is required")
	}
	if cfg.MaxResponseTime <= 0 {
		return nil, fmt.Errorf("max response time must be positive")
	}
	return &Checker{
		logger:          logger,
		node:            node,
		version:         version,
		maxResponseTime: cfg.MaxResponseTime,
		cacheDuration:   cfg.CacheDuration,
	}, nil
}

// AddProbe registers a dependency check. Detailed probes only run for the
// detailed endpoint.
func (c *Checker) AddProbe(name string, fn Probe, detailed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, probe{name: name, fn: fn, detailed: detailed})
	c.cachedHealth = nil
}

// Check performs a health check
func (c *Checker) Check(ctx context.Context, detailed bool) *HealthCheck {
	if !detailed {
		if cached := c.cached(); cached != nil {
			return cached
		}
	}

	health := &HealthCheck{
		Timestamp:  time.Now(),
		Version:    c.version,
		Components: map[string]ComponentHealth{"chain": c.checkChain()},
	}

	c.mu.RLock()
	probes := make([]probe, 0, len(c.probes))
	for _, p := range c.probes {
		if detailed || !p.detailed {
			probes = append(probes, p)
		}
	}
	c.mu.RUnlock()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, p := range probes {
		wg.Add(1)
		go func(p probe) {
			defer wg.Done()
			result := c.runProbe(ctx, p.fn)
			mu.Lock()
			health.Components[p.name] = result
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	health.Status = calculateOverallStatus(health.Components)

	if !detailed {
		c.mu.Lock()
		c.lastCheck = time.Now()
		c.cachedHealth = health
		c.mu.Unlock()
	}
	return health
}

// checkChain reports the committed height and whether an invariant halted the chain
func (c *Checker) checkChain() ComponentHealth {
	height := c.node.Height()
	metrics := map[string]any{"height": height}

	if err := c.node.Halted(); err != nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   err.Error(),
			Timestamp: time.Now(),
			Metrics:   metrics,
		}
	}
	if height == 0 {
		return ComponentHealth{
			Status:    StatusDegraded,
			Message:   "chain not initialized",
			Timestamp: time.Now(),
			Metrics:   metrics,
		}
	}
	return ComponentHealth{
		Status:    StatusHealthy,
		Message:   "state machine is accepting transactions",
		Timestamp: time.Now(),
		Metrics:   metrics,
	}
}

func (c *Checker) runProbe(ctx context.Context, fn Probe) ComponentHealth {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.maxResponseTime)
	defer cancel()

	start := time.Now()
	err := fn(timeoutCtx)
	duration := time.Since(start)
	metrics := map[string]any{"response_time_ms": duration.Milliseconds()}

	if err != nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   err.Error(),
			Timestamp: time.Now(),
			Metrics:   metrics,
		}
	}
	if duration > c.maxResponseTime/2 {
		return ComponentHealth{
			Status:    StatusDegraded,
			Message:   "response time is degraded",
			Timestamp: time.Now(),
			Metrics:   metrics,
		}
	}
	return ComponentHealth{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Metrics:   metrics,
	}
}

// calculateOverallStatus determines the overall health status based on component statuses
func calculateOverallStatus(components map[string]ComponentHealth) Status {
	hasDegraded := false
	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func (c *Checker) cached() *HealthCheck {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachedHealth == nil || time.Since(c.lastCheck) >= c.cacheDuration {
		return nil
	}
	return c.cachedHealth
}

// RegisterRoutes registers health check endpoints on router
func (c *Checker) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", c.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", c.handleHealthReady).Methods(http.MethodGet)
	router.HandleFunc("/health/detailed", c.handleHealthDetailed).Methods(http.MethodGet)
}

// handleHealth handles the basic liveness check endpoint
func (c *Checker) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"height":    c.node.Height(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleHealthReady handles the readiness check endpoint. Degraded nodes are
// still ready.
func (c *Checker) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	c.writeHealth(w, c.Check(r.Context(), false))
}

// handleHealthDetailed handles the detailed health check endpoint
func (c *Checker) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	c.writeHealth(w, c.Check(r.Context(), true))
}

func (c *Checker) writeHealth(w http.ResponseWriter, health *HealthCheck) {
	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.writeJSON(w, statusCode, health)
}

func (c *Checker) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Error("failed to write health response", "error", err)
	}
}
