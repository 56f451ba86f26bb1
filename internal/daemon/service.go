package daemon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// ServiceLabel names the autostart unit on every platform.
const ServiceLabel = "com.playerhub.daemon"

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>daemon</string>
		<string>--log-file</string>
		<string>{{.LogDir}}/playerhub.log</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardErrorPath</key>
	<string>{{.LogDir}}/playerhub.err</string>
	<key>WorkingDirectory</key>
	<string>{{.WorkingDirectory}}</string>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=playerhub daemon
After=network-online.target

[Service]
ExecStart={{.BinaryPath}} daemon --log-file {{.LogDir}}/playerhub.log
WorkingDirectory={{.WorkingDirectory}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// ServiceConfig describes the autostart unit.
type ServiceConfig struct {
	BinaryPath       string
	LogDir           string
	WorkingDirectory string
}

// ServiceManager is the init system owning the unit.
type ServiceManager string

const (
	Launchd ServiceManager = "launchd"
	Systemd ServiceManager = "systemd"
)

// ManagerFor returns the service manager used on goos.
func ManagerFor(goos string) (ServiceManager, error) {
	switch goos {
	case "darwin":
		return Launchd, nil
	case "linux":
		return Systemd, nil
	default:
		return "", fmt.Errorf("autostart is not supported on %s", goos)
	}
}

// GenerateUnit renders the unit file for m.
func GenerateUnit(m ServiceManager, config ServiceConfig) (string, error) {
	text := systemdTemplate
	if m == Launchd {
		text = launchdTemplate
	}

	tmpl, err := template.New(string(m)).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", m, err)
	}

	data := struct {
		ServiceConfig
		Label string
	}{config, ServiceLabel}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", m, err)
	}
	return buf.String(), nil
}

// UnitPath returns where the unit file for m is installed.
func UnitPath(m ServiceManager) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	if m == Launchd {
		return filepath.Join(home, "Library", "LaunchAgents", ServiceLabel+".plist"), nil
	}
	return filepath.Join(home, ".config", "systemd", "user", "playerhub.service"), nil
}

// GetDefaultLogPath returns the default path for daemon logs
func GetDefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "playerhub", "logs"), nil
}
