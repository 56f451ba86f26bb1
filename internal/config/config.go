package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultListenAddr is where the daemon serves the player websocket and
// the control API.
const DefaultListenAddr = "127.0.0.1:7862"

// Config holds application configuration
type Config struct {
	// Address the daemon listens on
	// Default: "127.0.0.1:7862"
	ListenAddr string

	// Directory holding the SQLite database
	// Default: the config directory
	DataDir string

	// Directory of the synced settings file. Empty disables sync even
	// when the syncSettings property is on.
	SyncDir string

	// Output format template for the now command
	// Default: "{{.Artist}} - {{.Title}}"
	OutputFormat string

	// Log level for the daemon (debug, info, warn, error)
	LogLevel string

	// Last.fm API credentials
	LastFM LastFMConfig

	// Discord Rich Presence; disabled without an application id
	Discord DiscordConfig
}

// LastFMConfig holds Last.fm specific configuration. The session key is
// a property of the daemon, not configuration.
type LastFMConfig struct {
	APIKey    string
	APISecret string
}

// DiscordConfig holds Discord Rich Presence configuration
type DiscordConfig struct {
	AppID      string
	PlayerName string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return LoadFrom(getConfigDir())
}

// LoadFrom reads config.yaml from dir, falling back to the working
// directory, then applies PLAYERHUB_* environment variables.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("data_dir", dir)
	v.SetDefault("sync_dir", "")
	v.SetDefault("output_format", "{{.Artist}} - {{.Title}}")
	v.SetDefault("log_level", "info")
	v.SetDefault("discord.app_id", "")
	v.SetDefault("discord.player_name", "Music")

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// PLAYERHUB_LASTFM_API_KEY maps to lastfm.api_key
	v.SetEnvPrefix("PLAYERHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		ListenAddr:   v.GetString("listen_addr"),
		DataDir:      expandHome(v.GetString("data_dir")),
		SyncDir:      expandHome(v.GetString("sync_dir")),
		OutputFormat: v.GetString("output_format"),
		LogLevel:     v.GetString("log_level"),
		LastFM: LastFMConfig{
			APIKey:    v.GetString("lastfm.api_key"),
			APISecret: v.GetString("lastfm.api_secret"),
		},
		Discord: DiscordConfig{
			AppID:      v.GetString("discord.app_id"),
			PlayerName: v.GetString("discord.player_name"),
		},
	}

	return cfg, nil
}

// DatabasePath returns the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "playerhub.db")
}

// SyncPath returns the synced settings file, or "" when sync is not
// configured.
func (c *Config) SyncPath() string {
	if c.SyncDir == "" {
		return ""
	}
	return filepath.Join(c.SyncDir, "playerhub-sync.yaml")
}

// APIURL returns the base URL of the daemon's control API.
func (c *Config) APIURL() string {
	return "http://" + c.ListenAddr
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "playerhub")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.SaveTo(getConfigDir())
}

// SaveTo writes config.yaml into dir.
func (c *Config) SaveTo(dir string) error {
	v := viper.New()

	v.Set("listen_addr", c.ListenAddr)
	v.Set("data_dir", c.DataDir)
	v.Set("sync_dir", c.SyncDir)
	v.Set("output_format", c.OutputFormat)
	v.Set("log_level", c.LogLevel)
	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("discord.app_id", c.Discord.AppID)
	v.Set("discord.player_name", c.Discord.PlayerName)

	return v.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}
