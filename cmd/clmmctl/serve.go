package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agatticelli/clmm-engine/internal/platform/cache"
	"github.com/agatticelli/clmm-engine/internal/platform/observability"
	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/service"
	"github.com/agatticelli/clmm-engine/internal/source/rpc"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	var ready atomic.Bool
	mux := newRouter(a.svc, a.logger, ready.Load, a.client)
	if a.cfg.Observability.Metrics.Port == a.cfg.HTTP.Port {
		mux.Handle("GET /metrics", a.metrics.Handler())
	} else if a.cfg.Observability.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", a.metrics.Handler())
		go listen(ctx, a.cfg.Observability.Metrics.Port, metricsMux, a.logger)
	}

	go func() {
		warmer := cache.NewWarmer(a.logger, cache.DefaultWarmupConfig())
		for _, p := range a.svc.WarmupProviders(a.cfg.Cache.WarmPoolIDs) {
			warmer.RegisterProvider(p)
		}
		results := warmer.Warmup(ctx)
		if results.HasErrors() {
			a.logger.LogWarn(ctx, "cache warmup incomplete", "failed", results.Errors)
		}
		ready.Store(true)
	}()

	listen(ctx, a.cfg.HTTP.Port, mux, a.logger)
	return nil
}

// listen serves handler on port until ctx is done.
func listen(ctx context.Context, port int, handler http.Handler, logger *observability.Logger) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.LogInfo(ctx, "HTTP server listening", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.LogError(ctx, "HTTP server error", err)
	}
}

// healthReporter describes the upstream node.
type healthReporter interface {
	Health() rpc.Health
}

// newRouter exposes health probes and read-only pool endpoints. node may be
// nil for in-memory pools.
func newRouter(svc *service.Service, logger *observability.Logger, ready func() bool, node healthReporter) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "healthy", "cache": svc.CacheStats()}
		if node == nil {
			respond(w, http.StatusOK, body)
			return
		}
		h := node.Health()
		body["source"] = h
		if !h.Healthy() {
			body["status"] = "degraded"
			respond(w, http.StatusServiceUnavailable, body)
			return
		}
		respond(w, http.StatusOK, body)
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready() {
			respond(w, http.StatusServiceUnavailable, map[string]string{"status": "warming"})
			return
		}
		respond(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("GET /pools", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"pools": svc.PoolIDs()})
	})

	mux.HandleFunc("GET /pools/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.GetPool(r.Context(), r.PathValue("id"))
		if err != nil {
			fail(w, r, logger, err)
			return
		}
		respond(w, http.StatusOK, newPoolView(snap, r.URL.Query().Get("ticks") == "true"))
	})

	mux.HandleFunc("GET /pools/{id}/quote", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		amount, err := parseAmount(q.Get("amount"))
		if err != nil {
			fail(w, r, logger, err)
			return
		}
		res, err := svc.Quote(r.Context(), r.PathValue("id"), service.QuoteRequest{
			AmountIn: amount,
			XIn:      q.Get("x_in") != "false",
		})
		if err != nil {
			fail(w, r, logger, err)
			return
		}
		respond(w, http.StatusOK, newSwapView(res))
	})

	mux.HandleFunc("GET /pools/{id}/tvl", func(w http.ResponseWriter, r *http.Request) {
		tvl, err := svc.TVL(r.Context(), r.PathValue("id"))
		if err != nil {
			fail(w, r, logger, err)
			return
		}
		respond(w, http.StatusOK, newTVLView(tvl))
	})

	return mux
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = writeJSON(w, body)
}

// fail maps engine errors to HTTP statuses. Server-side failures carry a
// request id that is also logged.
func fail(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	switch {
	case errors.Is(err, pool.ErrPoolNotFound):
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case pool.IsUserCorrectable(err):
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		id := uuid.NewString()
		logger.LogError(r.Context(), "request failed", err, "request_id", id, "path", r.URL.Path)
		respond(w, http.StatusBadGateway, map[string]string{"error": "upstream failure", "request_id": id})
	}
}
