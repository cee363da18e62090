package service

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

type InitSystem string

const (
	Systemd InitSystem = "systemd"
	Launchd InitSystem = "launchd"
	Unknown InitSystem = ""
)

// ErrNoInitSystem is returned on hosts without systemd or launchd.
var ErrNoInitSystem = errors.New("could not detect a supported init system, install the service manually")

// Detect returns the init system in use on this machine.
func Detect() InitSystem {
	if runtime.GOOS == "darwin" {
		return Launchd
	}
	if _, err := exec.LookPath("systemctl"); err == nil {
		return Systemd
	}
	return Unknown
}

// Install registers binPath as a service called name, started with
// --config configPath when configPath is set.
func Install(name, binPath, configPath string) error {
	switch Detect() {
	case Systemd:
		return installSystemd(name, binPath, configPath)
	case Launchd:
		return installLaunchd(name, binPath, configPath)
	default:
		return ErrNoInitSystem
	}
}

func Uninstall(name string) error {
	switch Detect() {
	case Systemd:
		return uninstallSystemd(name)
	case Launchd:
		return uninstallLaunchd(name)
	default:
		return ErrNoInitSystem
	}
}

func execArgs(binPath, configPath string) []string {
	if configPath == "" {
		return []string{binPath}
	}
	return []string{binPath, "--config", configPath}
}

// runPrivileged runs a command, prepending sudo if not root.
func runPrivileged(name string, args ...string) error {
	if os.Getuid() != 0 {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// writePrivileged writes content to a file, using sudo tee if not root.
func writePrivileged(path, content string) error {
	if os.Getuid() == 0 {
		return os.WriteFile(path, []byte(content), 0644)
	}
	cmd := exec.Command("sudo", "tee", path)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func removePrivileged(path string) error {
	if os.Getuid() == 0 {
		return os.Remove(path)
	}
	return exec.Command("sudo", "rm", "-f", path).Run()
}

// --- systemd ---

func systemdUnit(name, binPath, configPath string) string {
	return fmt.Sprintf(`[Unit]
Description=CoreSight %s
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
Restart=always
RestartSec=10
StandardOutput=journal
StandardError=journal

[Install]
WantedBy=multi-user.target
`, serviceLabel(name), strings.Join(execArgs(binPath, configPath), " "))
}

func installSystemd(name, binPath, configPath string) error {
	path := fmt.Sprintf("/etc/systemd/system/%s.service", name)
	if err := writePrivileged(path, systemdUnit(name, binPath, configPath)); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	if err := runPrivileged("systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}

	fmt.Printf("Systemd service installed: %s\n", path)
	fmt.Println()
	fmt.Printf("  Start now:    sudo systemctl enable --now %s\n", name)
	fmt.Printf("  Check status: sudo systemctl status %s --no-pager -l\n", name)
	fmt.Printf("  Check logs:   sudo journalctl -u %s -f\n", name)
	return nil
}

func uninstallSystemd(name string) error {
	_ = runPrivileged("systemctl", "stop", name)
	_ = runPrivileged("systemctl", "disable", name)
	path := fmt.Sprintf("/etc/systemd/system/%s.service", name)
	if err := removePrivileged(path); err != nil {
		return fmt.Errorf("remove unit file: %w", err)
	}
	_ = runPrivileged("systemctl", "daemon-reload")
	fmt.Printf("Systemd service removed: %s\n", name)
	return nil
}

// --- launchd ---

func launchdLabel(name string) string {
	return "com.coresight." + strings.TrimPrefix(name, "coresight-")
}

func launchdPlist(name, binPath, configPath string) string {
	var args strings.Builder
	for i, a := range execArgs(binPath, configPath) {
		if i > 0 {
			args.WriteString("\n")
		}
		fmt.Fprintf(&args, "        <string>%s</string>", a)
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
%s
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>/tmp/%s.log</string>
    <key>StandardErrorPath</key>
    <string>/tmp/%s.log</string>
</dict>
</plist>
`, launchdLabel(name), args.String(), name, name)
}

func launchdPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel(name)+".plist"), nil
}

func installLaunchd(name, binPath, configPath string) error {
	path, err := launchdPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create LaunchAgents dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(launchdPlist(name, binPath, configPath)), 0644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	fmt.Printf("LaunchAgent installed: %s\n", path)
	fmt.Println()
	fmt.Printf("  Start now:   launchctl load %s\n", path)
	fmt.Printf("  Check logs:  tail -f /tmp/%s.log\n", name)
	return nil
}

func uninstallLaunchd(name string) error {
	path, err := launchdPath(name)
	if err != nil {
		return err
	}
	_ = exec.Command("launchctl", "unload", path).Run()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	fmt.Printf("LaunchAgent removed: %s\n", name)
	return nil
}

func serviceLabel(name string) string {
	switch name {
	case "coresight-server":
		return "Server"
	case "coresight-agent":
		return "Agent"
	default:
		return name
	}
}
