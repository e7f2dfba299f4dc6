package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/core"
	"PerpIndexer/internal/ingestion"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/persistence"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/projection"
	"PerpIndexer/internal/query"
	"PerpIndexer/internal/server"
	"PerpIndexer/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	bootLog := observability.NewLogger("perpindexer")

	cfg, err := config.Load(os.Getenv("INDEXER_CONFIG"))
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config")
	}
	logger := observability.NewLoggerTo(os.Stdout, "perpindexer", observability.ParseLogLevel(cfg.LogLevel))
	logger.Info().Str("store", cfg.Store.Backend).Str("feed", cfg.Pricing.FeedSource).Msg("PerpIndexer starting")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("PerpIndexer stopped")
	}
	logger.Info().Msg("PerpIndexer shutdown complete")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	tokens, err := cfg.TokenTable()
	if err != nil {
		return fmt.Errorf("token table: %w", err)
	}
	periods, err := cfg.StatsPeriods()
	if err != nil {
		return fmt.Errorf("stats periods: %w", err)
	}

	// --- Store ---
	var (
		backing store.Store
		db      *sql.DB
		pgStore *persistence.PostgresStore
	)
	switch cfg.Store.Backend {
	case "postgres":
		db, err = persistence.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := persistence.NewMigrator(db, cfg.Postgres.MigrationsDir, logger).Up(ctx)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info().Int("applied", applied).Msg("migrations up to date")
		pgStore = persistence.NewPostgresStore(db)
		backing = pgStore
	default:
		logger.Warn().Msg("memory store selected, records are lost on exit")
		backing = store.NewMemoryStore()
	}
	st := store.NewInstrumented(backing, metrics)
	healthChecker.SetStoreReady(true)

	// --- Price feed ---
	var feed pricing.Feed
	switch cfg.Pricing.FeedSource {
	case "redis":
		client, err := pricing.NewRedisClient(ctx, cfg.Pricing.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		feed = pricing.NewRedisFeed(client, cfg.Pricing.Redis.KeyPrefix)
	default:
		feed = pricing.NewStoreFeed(st)
	}
	resolver := pricing.NewResolver(tokens, feed, metrics)
	feedWriter := pricing.NewFeedWriter(feed, metrics, logger.With().Str("component", "feed").Logger())

	var stats *projection.StatsProjector
	if len(periods) > 0 {
		stats = projection.NewStatsProjector(st, resolver, periods, metrics)
	}

	// --- Core ---
	// Engine output goes through the archive worker when it runs, which
	// forwards every output to the publisher.
	coreOut := make(chan core.CoreOutput, cfg.NATS.PublishChan)
	publishIn := coreOut
	var archiveWorker *persistence.ArchiveWorker
	if cfg.Archive.Enabled && db != nil {
		forward := make(chan core.CoreOutput, cfg.NATS.PublishChan)
		archiveWorker = persistence.NewArchiveWorker(
			persistence.NewArchiveWriter(db),
			coreOut,
			forward,
			cfg.Archive.BatchSize,
			cfg.Archive.FlushTimeout,
			metrics,
			logger.With().Str("component", "archive").Logger(),
		)
		publishIn = forward
	}

	engine := core.NewEngine(st, cfg.Core.TxMemoCapacity, stats, coreOut, metrics, logger.With().Str("component", "core").Logger())
	restored, err := engine.RestoreCheckpoint(ctx)
	if err != nil {
		return err
	}
	if !restored {
		logger.Info().Msg("no checkpoint found, starting from the first log")
	}
	healthChecker.SetRestored(true)

	if db != nil && cfg.Archive.Enabled {
		archived, ok, err := persistence.NewArchiveReader(db).LatestCursor(ctx)
		if err != nil {
			return fmt.Errorf("archive cursor: %w", err)
		}
		if last, seen := engine.LastCursor(); ok && seen && archived.Compare(last) < 0 {
			// Outputs in flight at the last shutdown were not archived.
			logger.Warn().Str("archive", archived.String()).Str("checkpoint", last.String()).Msg("event archive behind checkpoint")
		}
	}

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL, healthChecker, logger)
	if err != nil {
		return err
	}
	defer nc.Close()
	healthChecker.SetNATSReady(true)
	logger.Info().Str("url", cfg.NATS.URL).Msg("NATS connected")

	if err := ingestion.EnsureStreams(ctx, js, logger); err != nil {
		return fmt.Errorf("ensure NATS streams: %w", err)
	}
	if err := ingestion.EnsureOutboundStream(ctx, js, logger); err != nil {
		return fmt.Errorf("ensure outbound stream: %w", err)
	}

	rawEventChan := make(chan ingestion.RawEvent, cfg.NATS.RawEventChan)
	rawPriceChan := make(chan ingestion.RawEvent, cfg.NATS.RawEventChan)
	natsSubscriber := ingestion.NewNATSSubscriber(js, metrics, logger.With().Str("component", "nats").Logger())
	if err := natsSubscriber.Subscribe(ctx, ingestion.ProtocolSubjects(cfg.NATS.Durable), rawEventChan); err != nil {
		return fmt.Errorf("subscribe protocol events: %w", err)
	}
	if err := natsSubscriber.Subscribe(ctx, ingestion.PriceSubjects(cfg.NATS.Durable), rawPriceChan); err != nil {
		return fmt.Errorf("subscribe prices: %w", err)
	}
	defer natsSubscriber.Stop()

	outboundPublisher := ingestion.NewOutboundPublisher(js, publishIn, metrics, logger.With().Str("component", "publisher").Logger())

	// --- Services ---
	manualChan := make(chan ingestion.Submission, cfg.Core.EventChanSize)
	var archiveSource query.ArchiveSource
	if db != nil && cfg.Archive.Enabled {
		archiveSource = persistence.NewArchiveReader(db)
	}
	queryService := query.NewQueryService(st, resolver, tokens, archiveSource)

	apiServer, err := server.NewServer(cfg.Server.GRPCAddr, cfg.Server.HTTPAddr, &server.ServerDeps{
		QueryService:  queryService,
		IngestService: ingestion.NewIngestService(manualChan),
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        logger.With().Str("component", "server").Logger(),
	})
	if err != nil {
		return err
	}

	// --- Start goroutines ---
	errChan := make(chan error, 8)
	running := 6

	// 1. NATS and manual submissions -> engine
	go func() {
		err := ingestion.RunEventLoop(ctx, rawEventChan, manualChan, engine, metrics, logger.With().Str("component", "ingest").Logger())
		if err != nil && !errors.Is(err, context.Canceled) {
			healthChecker.SetHalted()
			logger.Error().Err(err).Msg("event loop halted")
		}
		errChan <- err
	}()

	// 2. Price snapshots -> feed
	go func() {
		errChan <- ingestion.RunPriceLoop(ctx, rawPriceChan, feedWriter, metrics, logger.With().Str("component", "prices").Logger())
	}()

	// 3. Event archive
	if archiveWorker != nil {
		running++
		go func() {
			errChan <- archiveWorker.Run(ctx)
		}()
	}

	// 4. Outbound publisher
	go func() {
		errChan <- outboundPublisher.Run(ctx)
	}()

	// 5. gRPC server
	go func() {
		errChan <- apiServer.StartGRPC(ctx)
	}()

	// 6. HTTP/JSON API
	go func() {
		errChan <- apiServer.StartHTTP(ctx)
	}()

	if pgStore != nil {
		go watchStore(ctx, pgStore, healthChecker, logger)
	}

	// 7. Prometheus metrics server
	go func() {
		errChan <- serveMetrics(ctx, cfg.Server.MetricsAddr, logger)
	}()

	logger.Info().
		Bool("restored", restored).
		Str("grpc", cfg.Server.GRPCAddr).
		Str("http", cfg.Server.HTTPAddr).
		Str("metrics", cfg.Server.MetricsAddr).
		Msg("PerpIndexer ready")

	// --- Wait for shutdown signal ---
	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case runErr = <-errChan:
		running--
		if runErr != nil {
			logger.Error().Err(runErr).Msg("goroutine failed, shutting down")
		}
	}

	cancel()

	// Give the archive worker and servers time to flush
	drain := time.NewTimer(5 * time.Second)
	defer drain.Stop()
	select {
	case <-drain.C:
	case <-waitAll(errChan, running):
	}

	if cursor, ok := engine.LastCursor(); ok {
		logger.Info().Str("cursor", cursor.String()).Int64("processed", engine.Processed()).Msg("final position")
	}
	return runErr
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = metricsServer.Shutdown(shutCtx)
	}()
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// watchStore flips store readiness with the database connection.
func watchStore(ctx context.Context, pg *persistence.PostgresStore, health *observability.HealthChecker, logger zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := pg.Ping(ctx)
			if err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("store ping failed")
			}
			health.SetStoreReady(err == nil)
		}
	}
}

// waitAll closes the returned channel after n more goroutines reported.
func waitAll(errChan <-chan error, n int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			<-errChan
		}
	}()
	return done
}
