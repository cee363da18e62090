package wizard

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/coresight/coresight/internal/agent"
)

// ErrCancelled is returned when the user leaves setup without saving.
var ErrCancelled = errors.New("setup cancelled by user")

// Run executes the interactive setup wizard and returns an updated config.
func Run(existing *agent.Config) (*agent.Config, error) {
	cfg := existing
	if cfg == nil {
		cfg = agent.DefaultConfig()
	}

	fmt.Println()
	fmt.Println("  ╔══════════════════════════════════════╗")
	fmt.Println("  ║        CoreSight Agent Setup         ║")
	fmt.Println("  ╚══════════════════════════════════════╝")
	fmt.Println()

	if cfg.IsConfigured() {
		fmt.Println("  Existing configuration detected.")
		fmt.Println()
	}

	for {
		action, err := runSetupMenu(cfg)
		if err != nil {
			return nil, err
		}
		switch action {
		case "server":
			if err := runServerForm(cfg); err != nil {
				return nil, fmt.Errorf("server setup: %w", err)
			}
		case "collection":
			if err := runCollectionForm(cfg); err != nil {
				return nil, fmt.Errorf("collection setup: %w", err)
			}
		case "save":
			if err := cfg.Validate(); err != nil {
				fmt.Printf("  %s\n\n", err)
				continue
			}
			confirmed, err := runSummary(cfg)
			if err != nil {
				return nil, fmt.Errorf("summary: %w", err)
			}
			if confirmed {
				return cfg, nil
			}
		case "cancel":
			return nil, ErrCancelled
		}
	}
}

func runSetupMenu(cfg *agent.Config) (string, error) {
	serverLabel := cfg.ServerURL
	if strings.TrimSpace(serverLabel) == "" {
		serverLabel = "<not set>"
	}

	var action string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Setup menu").
				Description(fmt.Sprintf("Server: %s | Every %s", truncate(serverLabel, 36), cfg.Interval())).
				Options(
					huh.NewOption("Configure server settings", "server"),
					huh.NewOption("Configure collection", "collection"),
					huh.NewOption("Save and exit", "save"),
					huh.NewOption("Cancel setup", "cancel"),
				).
				Value(&action),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return action, nil
}

func runServerForm(cfg *agent.Config) error {
	serverURL := cfg.ServerURL
	password := cfg.Password
	insecure := cfg.InsecureSkipTLS

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("The URL of your CoreSight server").
				Placeholder("https://monitor.example.com").
				Value(&serverURL),
			huh.NewInput().
				Title("Agent Password").
				Description("The ingest password configured on the server").
				EchoMode(huh.EchoModePassword).
				Value(&password),
			huh.NewConfirm().
				Title("Allow self-signed certificates?").
				Description("Enable if your server uses a self-signed TLS certificate").
				Value(&insecure),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	serverURL = normalizeURL(serverURL)

	fmt.Printf("\n  Testing connection to %s... ", serverURL)
	if err := testConnection(serverURL, insecure); err != nil {
		fmt.Printf("FAILED\n")
		fmt.Printf("  Error: %s\n\n", err)

		var proceed bool
		retryForm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Connection failed. Continue anyway?").
					Value(&proceed),
			),
		)
		if err := retryForm.Run(); err != nil {
			return err
		}
		if !proceed {
			return fmt.Errorf("connection test failed")
		}
	} else {
		fmt.Printf("OK\n\n")
	}

	cfg.ServerURL = serverURL
	cfg.Password = password
	cfg.InsecureSkipTLS = insecure
	return nil
}

func runCollectionForm(cfg *agent.Config) error {
	entityID := cfg.EntityID
	interval := strconv.Itoa(cfg.IntervalSeconds)
	healthPort := strconv.Itoa(cfg.HealthPort)
	diskPath := cfg.DiskPath

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Entity ID").
				Description("Leave empty to let the server match this host by name").
				Validate(validateEntityID).
				Value(&entityID),
			huh.NewInput().
				Title("Report interval (seconds)").
				Validate(intInRange(1, 3600)).
				Value(&interval),
			huh.NewInput().
				Title("Health port").
				Description("Port for the local /health endpoint, 0 to disable").
				Validate(intInRange(0, 65535)).
				Value(&healthPort),
			huh.NewInput().
				Title("Disk path").
				Description("Filesystem whose usage is reported").
				Value(&diskPath),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.EntityID = strings.TrimSpace(entityID)
	cfg.IntervalSeconds, _ = strconv.Atoi(interval)
	cfg.HealthPort, _ = strconv.Atoi(healthPort)
	cfg.DiskPath = strings.TrimSpace(diskPath)
	return nil
}

func normalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u
}

func validateEntityID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("must be a UUID")
	}
	return nil
}

func intInRange(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < lo || n > hi {
			return fmt.Errorf("must be a number between %d and %d", lo, hi)
		}
		return nil
	}
}

func testConnection(serverURL string, insecure bool) error {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	httpClient := &http.Client{Timeout: 10 * time.Second, Transport: transport}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
