package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jfmyers9/playerhub/internal/daemon"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the playerhub daemon automatically on login",
	Long: `Install the playerhub daemon as a launchd agent (macOS) or a systemd
user service (Linux) that runs automatically on login.

This command will:
  - Generate the unit file for the playerhub daemon
  - Install it to ~/Library/LaunchAgents/ or ~/.config/systemd/user/
  - Load and start it`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := daemon.ManagerFor(runtime.GOOS)
		if err != nil {
			return err
		}

		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		logPath, err := daemon.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		unit, err := daemon.GenerateUnit(manager, daemon.ServiceConfig{
			BinaryPath:       binaryPath,
			LogDir:           logPath,
			WorkingDirectory: home,
		})
		if err != nil {
			return err
		}

		unitPath, err := daemon.UnitPath(manager)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(unitPath), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(unitPath), err)
		}

		out := cmd.OutOrStdout()
		if _, err := os.Stat(unitPath); err == nil {
			fmt.Fprintln(out, "Daemon is already installed. Reloading...")
			if err := unloadService(manager); err != nil {
				fmt.Fprintf(out, "Warning: failed to unload existing daemon: %v\n", err)
			}
		}

		if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}
		fmt.Fprintf(out, "✓ Installed %s unit to %s\n", manager, unitPath)

		if err := loadService(manager, unitPath); err != nil {
			return fmt.Errorf("failed to load daemon: %w", err)
		}

		fmt.Fprintln(out, "✓ Daemon loaded and started successfully")
		fmt.Fprintf(out, "✓ Logs will be written to %s\n", logPath)
		fmt.Fprintln(out, "\nTo uninstall, run:")
		fmt.Fprintln(out, "  playerhub uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// launchdDomain returns the gui/<uid> domain of the current user.
func launchdDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

// loadService registers and starts the unit.
func loadService(manager daemon.ServiceManager, unitPath string) error {
	var commands [][]string
	switch manager {
	case daemon.Launchd:
		commands = [][]string{{"launchctl", "bootstrap", launchdDomain(), unitPath}}
	case daemon.Systemd:
		commands = [][]string{
			{"systemctl", "--user", "daemon-reload"},
			{"systemctl", "--user", "enable", "--now", filepath.Base(unitPath)},
		}
	}

	for _, args := range commands {
		output, err := exec.Command(args[0], args[1:]...).CombinedOutput()
		if err != nil {
			if msg := strings.TrimSpace(string(output)); msg != "" {
				return fmt.Errorf("%s failed: %s", strings.Join(args[:2], " "), msg)
			}
			return fmt.Errorf("failed to run %s: %w", args[0], err)
		}
	}
	return nil
}

// unloadService stops the unit. A unit that is not loaded is not an
// error.
func unloadService(manager daemon.ServiceManager) error {
	var args []string
	switch manager {
	case daemon.Launchd:
		args = []string{"launchctl", "bootout", launchdDomain() + "/" + daemon.ServiceLabel}
	case daemon.Systemd:
		args = []string{"systemctl", "--user", "disable", "--now", "playerhub.service"}
	}

	output, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			fmt.Printf("Warning: %s\n", msg)
		}
	}
	return nil
}
