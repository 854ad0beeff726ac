// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

// datapilot server: wires the query orchestration pipeline and exposes it
// over a minimal HTTP surface. Authentication and permission checks are
// handled upstream of this service.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/churchops/datapilot/config"
	"github.com/churchops/datapilot/history"
	"github.com/churchops/datapilot/orchestrator"
	"github.com/churchops/datapilot/orchestrator/llm/openai"
	"github.com/churchops/datapilot/shared/logger"
	"github.com/churchops/datapilot/shared/retry"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog := logger.New("server")

	catalog, err := orchestrator.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load route catalog: %v", err)
	}
	appLog.Info("", "route catalog loaded", map[string]interface{}{
		"routes": catalog.Len(),
		"path":   cfg.CatalogPath,
	})

	provider, err := openai.NewProvider(openai.Config{
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
	})
	if err != nil {
		log.Fatalf("failed to create completion provider: %v", err)
	}

	executorConfig := orchestrator.DefaultExecutorConfig()
	for service, baseURL := range cfg.ServiceURLs {
		executorConfig.ServiceURLs[service] = baseURL
	}

	registry := prometheus.NewRegistry()
	metrics := orchestrator.NewMetricsCollector(registry)

	pipeline := orchestrator.NewEnhancedQueryOrchestrator(
		orchestrator.NewQueryClassifier(provider, orchestrator.DefaultClassifierConfig(), logger.New("classifier")),
		orchestrator.NewRouteSelector(catalog, orchestrator.DefaultSelectorConfig(), logger.New("route-selector")),
		orchestrator.NewApiExecutor(executorConfig, logger.New("api-executor")),
		orchestrator.NewDataProcessor(orchestrator.DefaultProcessorConfig(), logger.New("data-processor")),
		orchestrator.NewAnswerSynthesizer(provider, logger.New("synthesizer")),
		metrics,
		logger.New("orchestrator"),
	)

	var store history.Store
	if cfg.HistoryDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pgStore, err := history.Connect(ctx, cfg.HistoryDSN, retry.Policy{MaxAttempts: 5, Backoff: 2 * time.Second})
		if err != nil {
			cancel()
			log.Fatalf("failed to connect history store: %v", err)
		}
		if err := pgStore.Migrate(ctx); err != nil {
			cancel()
			log.Fatalf("failed to migrate history store: %v", err)
		}
		cancel()
		defer func() {
			_ = pgStore.Close()
		}()
		store = pgStore
	}

	api := newAPIServer(pipeline, store, provider, appLog)

	router := mux.NewRouter()
	router.HandleFunc("/api/query", api.handleQuery).Methods("POST")
	router.HandleFunc("/api/history", api.handleHistory).Methods("GET")
	router.HandleFunc("/health", api.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		appLog.Info("", "server listening", map[string]interface{}{"addr": cfg.ListenAddr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appLog.Info("", "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("", "shutdown failed", err, nil)
	}
}
