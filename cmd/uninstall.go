package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/jfmyers9/playerhub/internal/daemon"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop starting the playerhub daemon on login",
	Long: `Stop the daemon, unload it from launchd or systemd and remove its unit file.

After uninstalling, the daemon will no longer run automatically on login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := daemon.ManagerFor(runtime.GOOS)
		if err != nil {
			return err
		}

		unitPath, err := daemon.UnitPath(manager)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if _, err := os.Stat(unitPath); os.IsNotExist(err) {
			fmt.Fprintln(out, "Daemon is not installed (unit file not found)")
			return nil
		}

		fmt.Fprintln(out, "Stopping daemon...")
		if err := unloadService(manager); err != nil {
			fmt.Fprintf(out, "Warning: failed to unload daemon: %v\n", err)
		} else {
			fmt.Fprintln(out, "✓ Daemon stopped")
		}

		if err := os.Remove(unitPath); err != nil {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		fmt.Fprintf(out, "✓ Removed %s\n", unitPath)
		fmt.Fprintln(out, "\nTo reinstall, run:")
		fmt.Fprintln(out, "  playerhub install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
