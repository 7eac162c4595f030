package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oblivion-chain/oblivion/app/health"
)

// NewMetricsHandler serves Prometheus metrics on /metrics and, when checker is
// set, the health endpoints.
func NewMetricsHandler(logger log.Logger, checker *health.Checker) http.Handler {
	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(promhttp.Handler())
	if checker != nil {
		checker.RegisterRoutes(router)
	}

	handler := handlers.CompressHandler(router)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)(handler)
}

// StartMetricsServer serves NewMetricsHandler on addr until ctx is cancelled.
// It returns the bound address.
func StartMetricsServer(ctx context.Context, logger log.Logger, addr string, checker *health.Checker) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	srv := &http.Server{
		Handler:           NewMetricsHandler(logger, checker),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("metrics server listening", "addr", listener.Addr().String())
	return listener.Addr().String(), nil
}

type recoveryLogger struct {
	logger log.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("panic in metrics handler", "panic", v)
}
