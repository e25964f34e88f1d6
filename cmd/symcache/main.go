package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aliharirian/symcache/internal/config"
	"github.com/aliharirian/symcache/internal/filecache"
	"github.com/aliharirian/symcache/internal/httpstore"
	"github.com/aliharirian/symcache/internal/httpx"
	"github.com/aliharirian/symcache/internal/metrics"
	"github.com/aliharirian/symcache/internal/s3store"
	"github.com/aliharirian/symcache/internal/server"
	"github.com/aliharirian/symcache/internal/store"
	"github.com/aliharirian/symcache/internal/unionstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLog.Sync()
	logger := zapr.NewLogger(zapLog)

	client := httpx.NewUpstreamClient()

	var upstreams []store.Store
	for _, u := range cfg.Upstreams {
		if u.Microsoft {
			upstreams = append(upstreams, httpstore.NewMicrosoftStore(u.URL, client, logger))
		} else {
			upstreams = append(upstreams, httpstore.New(u.URL, client, logger))
		}
	}

	if cfg.MinioEndpoint != "" {
		ctx := context.Background()
		s3, err := s3store.New(ctx, cfg.MinioEndpoint, cfg.MinioAccess, cfg.MinioSecret, cfg.MinioBucket)
		if err != nil {
			log.Fatalf("s3store error: %v", err)
		}
		upstreams = append(upstreams, s3)
	}

	var upstream store.Store
	switch len(upstreams) {
	case 0:
		log.Fatal("no upstreams configured")
	case 1:
		upstream = upstreams[0]
	default:
		upstream = unionstore.New(upstreams...)
	}

	policy := store.CacheValidityPolicy{
		UnreachableStatusValidityPeriod: cfg.UnreachableValidity(),
		FileResultValidityPeriod:        cfg.FileResultValidity(),
	}

	reg := prometheus.NewRegistry()
	symMetrics := metrics.NewRegistry(reg)

	var root store.Store
	if cfg.IdentityPartitioned {
		root = filecache.NewIdentityFileCache(cfg.CacheRoot, upstream, logger, symMetrics)
	} else {
		root = filecache.NewLegacyFileCache(cfg.CacheRoot, upstream, logger, symMetrics)
	}

	mux := http.NewServeMux()
	mux.Handle("/", server.New(root, logger, symMetrics, policy))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	health := &metrics.HealthHandler{CacheRoot: cfg.CacheRoot, Store: upstream, Policy: policy}
	mux.Handle("/healthz", health.HealthCheckHandler())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0,
	}

	go func() {
		logger.Info("symcache listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctxShutdown)
	logger.Info("symcache stopped")
}
