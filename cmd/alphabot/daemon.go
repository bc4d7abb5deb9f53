package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"alphabot/internal/config"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "com.alphabot.run"
	systemdUnit  = "alphabot.service"
)

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install alphabot as a user service (launchd/systemd)",
		Long:  "Generates and installs a service file that runs 'alphabot run' on login.",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			cfgPath, err := filepath.Abs(resolveConfigPath())
			if err != nil {
				return err
			}
			path, body, err := serviceFile(runtime.GOOS, execPath, cfgPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				return err
			}
			fmt.Printf("Service installed: %s\n", path)
			if runtime.GOOS == "darwin" {
				fmt.Printf("To start: launchctl load %s\n", path)
			} else {
				fmt.Printf("To start:  systemctl --user start alphabot\n")
				fmt.Printf("To enable: systemctl --user enable alphabot\n")
			}
			return nil
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the alphabot user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := serviceFile(runtime.GOOS, "", "")
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Printf("Service removed: %s\n", path)
			return nil
		},
	}
}

// serviceFile returns the service definition path and content for goos.
func serviceFile(goos, execPath, cfgPath string) (string, string, error) {
	home, _ := os.UserHomeDir()
	r := strings.NewReplacer(
		"{{EXEC}}", execPath,
		"{{CONFIG}}", cfgPath,
		"{{LABEL}}", launchdLabel,
		"{{LOG}}", filepath.Join(config.DefaultConfigDir(), "logs", "alphabot.log"),
	)
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"), r.Replace(launchdTemplate), nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", systemdUnit), r.Replace(systemdTemplate), nil
	default:
		return "", "", fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", goos)
	}
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>run</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=alphabot WhatsApp group bot
After=network-online.target

[Service]
Type=simple
ExecStart={{EXEC}} run --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
