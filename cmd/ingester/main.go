package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/cgm-ingest/internal/auth"
	"github.com/rickgao/cgm-ingest/internal/config"
	"github.com/rickgao/cgm-ingest/internal/database"
	"github.com/rickgao/cgm-ingest/internal/decode"
	"github.com/rickgao/cgm-ingest/internal/intake"
	"github.com/rickgao/cgm-ingest/internal/metrics"
	"github.com/rickgao/cgm-ingest/internal/model"
	"github.com/rickgao/cgm-ingest/internal/monitor"
	"github.com/rickgao/cgm-ingest/internal/nightscout"
	"github.com/rickgao/cgm-ingest/internal/pipeline"
	"github.com/rickgao/cgm-ingest/internal/router"
	"github.com/rickgao/cgm-ingest/internal/server"
	"github.com/rickgao/cgm-ingest/internal/sink"
	"github.com/rickgao/cgm-ingest/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingester.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting ingester",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"sensor", cfg.Source.Sensor,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open store
	logger.Info("opening store", "driver", cfg.Database.Driver)
	st, err := database.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Sinks
	var targets []monitor.Target
	var hub *sink.Hub
	var relay sink.RelaySink
	switch cfg.Relay.Kind {
	case "hub":
		hub = sink.NewHub(cfg.Relay.ClientBuffer, logger)
		defer hub.Close()
		relay = hub
	case "redis":
		pub := sink.NewGoRedisPublisher(cfg.Relay.RedisAddr)
		defer pub.Close()
		relay = sink.NewRedisRelay(pub, cfg.Relay.RedisChannel)
		targets = append(targets, monitor.Target{Name: "redis", Check: pub.Ping})
	default:
		relay = sink.NopRelay{}
	}

	var upload sink.UploadSink = sink.NopUploader{}
	if cfg.Upload.Kind == "nightscout" {
		client, err := newNightscoutClient(cfg.Upload, logger)
		if err != nil {
			logger.Error("failed to configure upload", "error", err)
			os.Exit(1)
		}
		upload = sink.NewNightscoutUploader(client)
		targets = append(targets, monitor.Target{Name: "nightscout", Check: func(ctx context.Context) error {
			_, err := client.GetStatus(ctx)
			return err
		}})
	}

	fanout := sink.NewFanout(relay, upload, cfg.Source.Label,
		sink.WithTimeout(cfg.Pipeline.NotifyTimeout),
		sink.WithMetrics(m),
		sink.WithLogger(logger),
	)

	// Pipeline
	sensor, _ := model.ParseSourceSensor(cfg.Source.Sensor)
	decoder := decode.New(sensor, decode.Fields{
		Value:     cfg.Decode.ValueKey,
		Trend:     cfg.Decode.TrendKey,
		Timestamp: cfg.Decode.TimestampKey,
		Raw:       cfg.Decode.RawKey,
	})
	gate := pipeline.NewToggle(cfg.SourceEnabled())

	pipe := pipeline.New(pipeline.Config{
		Workers:       cfg.Pipeline.Workers,
		QueueSize:     cfg.Pipeline.QueueSize,
		StoreTimeout:  cfg.Pipeline.StoreTimeout,
		NotifyTimeout: cfg.Pipeline.NotifyTimeout,
	}, gate, decoder, st, fanout,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	)
	if err := pipe.Start(ctx); err != nil {
		logger.Error("failed to start pipeline", "error", err)
		os.Exit(1)
	}

	// Optional websocket feed from the companion app
	var feed *intake.Feed
	var rt router.Router
	if cfg.Intake.WebSocketURL != "" {
		feedCfg := intake.DefaultFeedConfig()
		feedCfg.Client.URL = cfg.Intake.WebSocketURL
		feedCfg.Client.PingTimeout = cfg.Intake.PingTimeout
		feedCfg.ReconnectBaseWait = cfg.Intake.ReconnectBaseDelay
		feedCfg.ReconnectMaxWait = cfg.Intake.ReconnectMaxDelay

		feed = intake.NewFeed(feedCfg, logger)
		rt = router.NewRouter(router.DefaultRouterConfig(), feed.Output(), func(p model.Payload) {
			pipe.Handle(p)
		}, logger)

		rt.Start(ctx)
		feed.Start(ctx)

		targets = append(targets, monitor.Target{Name: "intake_feed", Check: func(context.Context) error {
			if !feed.Stats().Connected {
				return errors.New("not connected")
			}
			return nil
		}})
	}

	// Dependency checks
	mon := monitor.New(monitor.Config{
		Interval: cfg.Monitor.Interval,
		Timeout:  cfg.Monitor.Timeout,
	}, targets, m, logger)
	mon.Start(ctx)

	// HTTP server
	deps := server.Deps{
		Intake:  pipe,
		Gate:    gate,
		Store:   st,
		Checks:  mon,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if hub != nil {
		deps.Relay = hub
	}

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: server.NewHandler(server.Config{
			InstanceID:   cfg.Instance.ID,
			HTTPPath:     cfg.Intake.HTTPPath,
			MaxBodyBytes: cfg.Intake.MaxBodyBytes,
			MetricsPath:  cfg.Metrics.Path,
			Source: server.Source{
				Sensor:            cfg.Source.Sensor,
				Label:             cfg.Source.Label,
				AdvancedFiltering: cfg.Source.AdvancedFiltering,
			},
		}, deps, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("ingester running",
		"instance_id", cfg.Instance.ID,
		"intake_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Intake.HTTPPath),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
		"enabled", gate.Enabled(),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop intake first so nothing new reaches the pipeline.
	httpServer.Shutdown(shutdownCtx)
	if feed != nil {
		feed.Stop(shutdownCtx)
		rt.Stop(shutdownCtx)
	}
	pipe.Stop(shutdownCtx)
	mon.Stop(shutdownCtx)

	stats := pipe.Stats()
	logger.Info("ingester stopped",
		"received", stats.Received,
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"store_failed", stats.StoreFailed,
	)
}

func newNightscoutClient(cfg config.UploadConfig, logger *slog.Logger) (*nightscout.Client, error) {
	var creds *auth.Credentials
	if cfg.APISecret != "" {
		c, err := auth.NewCredentials(cfg.APISecret)
		if err != nil {
			return nil, fmt.Errorf("nightscout credentials: %w", err)
		}
		creds = c
	}

	return nightscout.NewClient(cfg.URL, creds,
		nightscout.WithLogger(logger),
		nightscout.WithTimeout(cfg.Timeout),
		nightscout.WithRetries(cfg.MaxRetries, time.Second),
	), nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
