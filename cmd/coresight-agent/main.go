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

	"github.com/coresight/coresight/internal/agent"
	"github.com/coresight/coresight/internal/agent/wizard"
	"github.com/coresight/coresight/internal/service"
	"github.com/coresight/coresight/internal/version"
)

func main() {
	configPath := flag.String("config", agent.DefaultConfigPath(), "path to config file")
	setup := flag.Bool("setup", false, "run interactive setup wizard")
	serverURL := flag.String("server", "", "server URL (non-interactive setup)")
	password := flag.String("password", "", "agent password (non-interactive setup)")
	insecure := flag.Bool("insecure", false, "allow self-signed TLS certificates")
	noDaemon := flag.Bool("no-daemon", false, "exit after setup, don't run the agent")
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
		if err := service.Install("coresight-agent", binPath, cfgAbs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *serviceUninstall {
		if err := service.Uninstall("coresight-agent"); err != nil {
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

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	// Apply CLI overrides
	changed := false
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
		changed = true
	}
	if *password != "" {
		cfg.Password = *password
		changed = true
	}
	if *insecure {
		cfg.InsecureSkipTLS = true
		changed = true
	}

	if *setup {
		updated, err := wizard.Run(cfg)
		if errors.Is(err, wizard.ErrCancelled) {
			fmt.Println("Setup cancelled.")
			os.Exit(0)
		}
		if err != nil {
			logger.Error("setup wizard failed", "err", err)
			os.Exit(1)
		}
		cfg = updated
		changed = true
	}

	if !cfg.IsConfigured() {
		fmt.Println("CoreSight agent is not configured.")
		fmt.Println("Run with --setup for interactive setup, or provide --server and --password flags.")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	if changed {
		if err := agent.SaveConfig(cfg, *configPath); err != nil {
			logger.Error("failed to save config", "err", err)
			os.Exit(1)
		}
		logger.Info("config saved", "path", *configPath)
	}

	if *noDaemon {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := agent.NewDaemon(cfg, logger).Run(ctx); err != nil {
		logger.Error("agent stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("agent stopped")
}
