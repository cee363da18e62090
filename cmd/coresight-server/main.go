package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"github.com/coresight/coresight/internal/alerting"
	"github.com/coresight/coresight/internal/evaluator"
	"github.com/coresight/coresight/internal/ingest"
	"github.com/coresight/coresight/internal/server"
	"github.com/coresight/coresight/internal/service"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
	"github.com/coresight/coresight/internal/tracker"
	"github.com/coresight/coresight/internal/version"
)

const overridesPollInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", server.DefaultServerConfigPath(), "path to config file")
	setup := flag.Bool("setup", false, "run initial setup")
	serviceInstall := flag.Bool("service-install", false, "install as a system service (systemd or launchd)")
	serviceUninstall := flag.Bool("service-uninstall", false, "remove the system service")
	debug := flag.Bool("debug", false, "enable debug logging")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if *serviceInstall {
		binPath, _ := os.Executable()
		cfgAbs, _ := filepath.Abs(*configPath)
		if err := service.Install("coresight-server", binPath, cfgAbs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *serviceUninstall {
		if err := service.Uninstall("coresight-server"); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := server.LoadServerConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	if *setup || cfg.AdminPasswordHash == "" || cfg.IngestPasswordHash == "" {
		if err := runSetup(cfg, *configPath); err != nil {
			logger.Error("setup failed", "err", err)
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *server.Config, logger *slog.Logger) error {
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: "coresight@" + version.Version,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create database directory %s: %w", dbDir, err)
	}
	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer st.Close()
	logger.Info("database ready", "path", cfg.DatabasePath)

	metrics := telemetry.New()

	thresholds, err := evaluator.NewSource(cfg.Thresholds, cfg.ThresholdOverridesFile, logger)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}

	dispatcher := alerting.NewDispatcher(st, logger, metrics)
	notifier := alerting.NewNotifier(st, dispatcher, alerting.NotifierConfig{
		QueueSize: cfg.NotifyQueueSize,
		Retention: cfg.Retention(),
	}, logger, metrics)
	alerts := alerting.NewManager(st, cfg.AlertCooldown(), notifier, logger, metrics)

	tr := tracker.New(st, alerts, logger, metrics)
	prober := tracker.NewProber(cfg.ProbeTimeout(), cfg.AgentHealthPort)
	defer prober.Close()
	scheduler := tracker.NewScheduler(st, prober, tr, tracker.SchedulerConfig{
		Interval:      cfg.ProbeInterval(),
		MaxConcurrent: cfg.MaxConcurrentProbes,
	}, logger, metrics)

	pipeline := ingest.New(st, alerts, thresholds, ingest.Config{AutoRegister: cfg.AutoRegister}, logger, metrics)

	srv := server.New(cfg, server.Deps{
		Store:      st,
		Ingest:     pipeline,
		Alerts:     alerts,
		Dispatcher: dispatcher,
		Tracker:    tr,
		Metrics:    metrics,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger.Info("CoreSight server starting",
		"version", version.Version,
		"addr", cfg.ListenAddr,
		"tls", cfg.TLSMode)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { notifier.Run(ctx); return nil })
	g.Go(func() error { scheduler.Run(ctx); return nil })
	g.Go(func() error { thresholds.Watch(ctx, overridesPollInterval); return nil })
	g.Go(func() error { return srv.Run(ctx) })

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func runSetup(cfg *server.Config, configPath string) error {
	fmt.Println("=== CoreSight Server Setup ===")
	fmt.Println()

	var adminPw, ingestPw string
	tlsMode := cfg.TLSMode
	listenAddr := cfg.ListenAddr
	domain := cfg.Domain

	required := func(s string) error {
		if s == "" {
			return errors.New("required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Admin password").
				Description("Protects the /api/v1/admin endpoints").
				EchoMode(huh.EchoModePassword).
				Validate(required).
				Value(&adminPw),
			huh.NewInput().
				Title("Agent password").
				Description("Shared by every agent posting to /metrics").
				EchoMode(huh.EchoModePassword).
				Validate(required).
				Value(&ingestPw),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("TLS mode").
				Options(
					huh.NewOption("none (HTTP, use behind a reverse proxy)", "none"),
					huh.NewOption("autocert (Let's Encrypt)", "autocert"),
					huh.NewOption("selfsigned (generated certificate)", "selfsigned"),
				).
				Value(&tlsMode),
			huh.NewInput().
				Title("Listen address").
				Value(&listenAddr),
			huh.NewInput().
				Title("Domain").
				Description("Required for autocert").
				Value(&domain),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if tlsMode == "autocert" && domain == "" {
		return fmt.Errorf("domain is required for autocert")
	}

	adminHash, err := server.HashPassword(adminPw)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	ingestHash, err := server.HashPassword(ingestPw)
	if err != nil {
		return fmt.Errorf("hash agent password: %w", err)
	}
	cfg.AdminPasswordHash = adminHash
	cfg.IngestPasswordHash = ingestHash
	cfg.TLSMode = tlsMode
	cfg.ListenAddr = listenAddr
	cfg.Domain = domain

	if err := server.SaveServerConfig(cfg, configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Println()
	fmt.Printf("Config saved to %s\n", configPath)
	if cfg.TLSMode == "none" {
		fmt.Println("Running in HTTP mode. For HTTPS, put the server behind a reverse proxy.")
	}
	return nil
}
