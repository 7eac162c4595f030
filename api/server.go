// Package api serves the Oblivion node over HTTP: signed transaction
// submission, the devnet faucet and the marketplace query views.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/oblivion-chain/oblivion/app/health"
	"github.com/oblivion-chain/oblivion/app/tx"
	"github.com/oblivion-chain/oblivion/x/marketplace/keeper"
)

// Node is the state machine the server fronts.
type Node interface {
	ChainID() string
	Height() int64
	DeliverTx(ctx context.Context, env *tx.Envelope) (*tx.Receipt, error)
	Fund(ctx context.Context, addr sdk.AccAddress, amount math.Int) (*tx.Receipt, error)
	Account(addr sdk.AccAddress) (tx.Account, error)
	View(fn func(ctx sdk.Context, k *keeper.Keeper) error) error
}

// Server represents the main API server
type Server struct {
	router  *gin.Engine
	node    Node
	config  *Config
	logger  log.Logger
	auth    *FaucetAuth
	checker *health.Checker
}

// Config holds server configuration
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimitRPS    int           `mapstructure:"rate_limit_rps"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// FaucetEnabled exposes POST /v1/faucet.
	FaucetEnabled bool `mapstructure:"faucet_enabled"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "1317",
		CORSOrigins:     []string{"http://localhost:3000", "http://localhost:8080"},
		RateLimitRPS:    100,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FaucetEnabled:   true,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewServer creates a new API server instance. checker may be nil, in which
// case /health only reports liveness.
func NewServer(logger log.Logger, node Node, checker *health.Checker, config *Config) (*Server, error) {
	if node == nil {
		return nil, errors.New("node is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", config.RateLimitRPS)
	}

	secret := []byte(config.JWTSecret)
	if config.FaucetEnabled && len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		logger.Warn("JWT secret generated randomly; configure api.jwt_secret to issue faucet tokens",
			"secret", hex.EncodeToString(secret))
	}

	s := &Server{
		node:    node,
		config:  config,
		logger:  logger.With("module", "api"),
		auth:    NewFaucetAuth(secret),
		checker: checker,
	}
	s.setupRouter()
	return s, nil
}

// setupRouter configures the Gin router with all routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()

	// Recovery first so it catches panics from every later middleware.
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(SecurityHeadersMiddleware())
	s.router.Use(RequestSizeLimitMiddleware(MaxRequestSize))
	s.router.Use(RequestIDMiddleware())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.config.RateLimitRPS))
	s.router.Use(MetricsMiddleware())

	s.router.GET("/health", s.healthCheck)
	s.registerRoutes()
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Auth returns the faucet token issuer.
func (s *Server) Auth() *FaucetAuth {
	return s.auth
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	if s.checker == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":    health.StatusHealthy,
			"height":    s.node.Height(),
			"timestamp": time.Now().Unix(),
		})
		return
	}

	result := s.checker.Check(c.Request.Context(), false)
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.config.Addr(),
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
