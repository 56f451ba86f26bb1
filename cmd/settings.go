package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change the daemon's settings",
	Long: `Show and change the user settings held by the running daemon.

Settings files for export and import are TOML when the file name ends in
.toml, JSON for .json and YAML otherwise.`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [name]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Change a setting",
	Long: `Change a setting. The value is parsed as JSON, so 'true', '80' and
'"text"' keep their types; anything that is not valid JSON is taken as a
string.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore every setting to its default",
	Args:  cobra.NoArgs,
	RunE:  runSettingsReset,
}

var settingsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the settings to a file, or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsExport,
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply settings from a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsImport,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	values, err := api.settings(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		value, ok := values[args[0]]
		if !ok {
			return fmt.Errorf("unknown setting: %s", args[0])
		}
		fmt.Fprintln(out, formatSettingValue(value))
		return nil
	}
	for _, name := range sortedKeys(values) {
		fmt.Fprintf(out, "%s = %s\n", name, formatSettingValue(values[name]))
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	name := args[0]
	unknown, err := api.importSettings(ctx, map[string]any{name: parseSettingValue(args[1])})
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown setting: %s", name)
	}
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	if err := api.resetSettings(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Settings restored to defaults")
	return nil
}

func runSettingsExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	values, err := api.settings(ctx)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	data, err := encodeSettings(values, settingsFormat(path))
	if err != nil {
		return err
	}
	if path == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Settings exported to %s\n", path)
	return nil
}

func runSettingsImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	record, err := decodeSettings(data, settingsFormat(path))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api, _, err := clientFromConfig()
	if err != nil {
		return err
	}
	unknown, err := api.importSettings(ctx, record)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range unknown {
		fmt.Fprintf(out, "⚠ Ignored unknown setting: %s\n", name)
	}
	fmt.Fprintf(out, "✓ Imported %d setting(s) from %s\n", len(record)-len(unknown), path)
	return nil
}

// settingsFormat picks a file format from the extension of path.
func settingsFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func encodeSettings(values map[string]any, format string) ([]byte, error) {
	switch format {
	case "toml":
		// TOML has no null.
		clean := make(map[string]any, len(values))
		for k, v := range values {
			if v != nil {
				clean[k] = v
			}
		}
		return toml.Marshal(clean)
	case "json":
		data, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(values); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func decodeSettings(data []byte, format string) (map[string]any, error) {
	record := map[string]any{}
	var err error
	switch format {
	case "toml":
		err = toml.Unmarshal(data, &record)
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&record)
		if err == io.EOF {
			err = nil
		}
	default:
		err = yaml.Unmarshal(data, &record)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// parseSettingValue reads raw as JSON, falling back to a plain string.
func parseSettingValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func formatSettingValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
