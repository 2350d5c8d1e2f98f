// Package app wires every MCP component into the two runtime modes: api
// (thin admin HTTP surface) and worker (ingestion watch loop + daily report
// scheduler), per spec §2, §9 C10.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/feustey/mcp/internal/breaker"
	"github.com/feustey/mcp/internal/config"
	"github.com/feustey/mcp/internal/httpapi"
	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/internal/telemetry"
	"github.com/feustey/mcp/pkg/adapters/embedding"
	"github.com/feustey/mcp/pkg/adapters/kvcache"
	"github.com/feustey/mcp/pkg/adapters/llm"
	"github.com/feustey/mcp/pkg/adapters/nodectl"
	"github.com/feustey/mcp/pkg/adapters/nodedata"
	"github.com/feustey/mcp/pkg/adapters/vectorstore"
	"github.com/feustey/mcp/pkg/decision"
	"github.com/feustey/mcp/pkg/ingestion"
	"github.com/feustey/mcp/pkg/ingestion/source"
	"github.com/feustey/mcp/pkg/reasoning"
	"github.com/feustey/mcp/pkg/report"
	"github.com/feustey/mcp/pkg/retrieval"
	"github.com/feustey/mcp/pkg/scheduler"
	"github.com/feustey/mcp/pkg/vectorindex"
	"github.com/feustey/mcp/pkg/version"
)

// Run is the process entry point: load infrastructure, build every
// component, and dispatch to the configured mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting mcp", "mode", cfg.Mode, "listen", cfg.ListenAddr(), "dry_run", cfg.DryRun)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "mcp", version.Version)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := store.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	rdb, err := kvcache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	st := store.New(pool)
	breakerCfg := breaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		FailureWindow:     time.Duration(cfg.Breaker.FailureWindowS) * time.Second,
		ResetTimeout:      time.Duration(cfg.Breaker.ResetTimeoutS) * time.Second,
		HalfOpenMaxProbes: cfg.Breaker.HalfOpenMaxProbes,
	}
	breakers := breaker.NewRegistry(breakerCfg)
	adapterTimeout := time.Duration(cfg.AdapterTimeoutS) * time.Second

	nodeData := nodedata.New(nodedata.Config{
		BaseURL: cfg.NodeDataBaseURL, ClientID: cfg.NodeDataClientID,
		ClientSecret: cfg.NodeDataClientSecret, TokenURL: cfg.NodeDataTokenURL,
		Timeout: adapterTimeout,
	}, breakers)
	nodeCtl := nodectl.New(nodectl.Config{Addr: cfg.NodeCtlAddr, Timeout: adapterTimeout}, breakers)
	llmClient := llm.New(llm.Config{
		BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, ModelID: cfg.LLMModelID, Timeout: adapterTimeout,
	}, breakers)
	embClient := embedding.New(embedding.Config{
		BaseURL: cfg.EmbeddingBaseURL, APIKey: cfg.EmbeddingAPIKey,
		ModelID: cfg.Embedding.ModelID, Version: cfg.Embedding.Version, Timeout: adapterTimeout,
	}, breakers)
	vsClient := vectorstore.New(vectorstore.Config{BaseURL: cfg.VectorStoreBaseURL, Timeout: adapterTimeout}, breakers)
	kv := kvcache.New(rdb, adapterTimeout, breakers)

	pipeline := ingestion.New(st, embClient, vsClient, cfg.Limits.MaxItemFailureRatio)
	indexMgr := vectorindex.New(st, vsClient, kv, cfg.Embedding.Dim)

	retrievalTTL := time.Duration(cfg.Retrieval.CacheTTLS) * time.Second
	retrievalSvc := retrieval.New(st, embClient, vsClient, kv, retrievalTTL, cfg.Retrieval.VectorWeight)
	reasoningSvc := reasoning.New(llmClient, kv, retrievalTTL, reasoning.MaxHitsInPrompt)

	decisionEngine := decision.New(st, nodeCtl, cfg.Heuristic, cfg.Limits, logger)

	reportTimeout := time.Duration(cfg.Scheduler.PerReportTimeoutS) * time.Second
	reportGen := report.New(st, nodeData, retrievalSvc, reasoningSvc, decisionEngine, reportTimeout, cfg.Limits.MaxAttemptsPerDay)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, pool, rdb, metricsReg, pipeline, indexMgr, retrievalSvc, reportGen, decisionEngine, st)
	case "worker":
		return runWorker(ctx, cfg, logger, reportGen, pipeline, st)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	pool *pgxpool.Pool,
	rdb *redis.Client,
	metricsReg *prometheus.Registry,
	pipeline *ingestion.Pipeline,
	indexMgr *vectorindex.Manager,
	retrievalSvc *retrieval.Service,
	reportGen *report.Generator,
	decisionEngine *decision.Engine,
	st *store.Store,
) error {
	auth, err := httpapi.NewAPIKeyAuth(cfg.AdminAPIKey)
	if err != nil {
		return fmt.Errorf("hashing admin api key: %w", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Ingest:          &httpapi.IngestHandler{Pipeline: pipeline},
		Reports:         &httpapi.ReportsHandler{Store: st, Generator: reportGen},
		Decisions:       &httpapi.DecisionsHandler{Engine: decisionEngine},
		RAG:             &httpapi.RAGHandler{Retrieval: retrievalSvc, Index: indexMgr, Pipeline: pipeline},
		Health:          &httpapi.HealthHandler{Pool: pool, Redis: rdb, VectorIndex: indexMgr, Alias: vectorindex.DefaultAlias},
		Auth:            auth,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		MetricsPath:     cfg.MetricsPath,
		MetricsRegistry: metricsReg,
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, reportGen *report.Generator, pipeline *ingestion.Pipeline, st *store.Store) error {
	logger.Info("worker started")

	sched := scheduler.New(st, reportGen, cfg.Scheduler.Hour, cfg.Scheduler.Minute,
		cfg.Scheduler.MaxConcurrent, cfg.Scheduler.MaxRetries,
		time.Duration(cfg.Scheduler.GracefulTimeoutS)*time.Second, logger)

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			if _, err := st.PurgeExpiredReports(ctx, time.Now().UTC()); err != nil {
				logger.Error("purging expired reports", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	if cfg.IngestWatchDir != "" {
		go runIngestWatch(ctx, cfg, logger, pipeline, st)
	}

	sched.Run(ctx)
	return nil
}

// runIngestWatch keeps the live index's file:// corpus in sync: every
// changed file is re-ingested into whatever index the docs alias currently
// points at (spec §4.2 supplement).
func runIngestWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, pipeline *ingestion.Pipeline, st *store.Store) {
	changed := make(chan string, 64)
	if err := source.Watch(ctx, cfg.IngestWatchDir, changed); err != nil {
		logger.Error("starting ingest watch", "dir", cfg.IngestWatchDir, "error", err)
		return
	}
	logger.Info("watching for ingest changes", "dir", cfg.IngestWatchDir)

	for {
		select {
		case <-ctx.Done():
			return
		case uri := <-changed:
			idx, err := st.CurrentIndex(ctx, vectorindex.DefaultAlias)
			if err != nil {
				logger.Error("resolving current index for watch ingest", "error", err)
				continue
			}
			if _, err := pipeline.Ingest(ctx, uri, cfg.Embedding.Version, idx.Name); err != nil {
				logger.Error("watch-triggered ingest failed", "uri", uri, "error", err)
			}
		}
	}
}
