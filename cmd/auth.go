package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jfmyers9/playerhub/internal/config"
	"github.com/jfmyers9/playerhub/internal/scrobbler"
	"github.com/jfmyers9/playerhub/internal/state"
	"github.com/jfmyers9/playerhub/internal/storage"
	"github.com/jfmyers9/playerhub/pkg/lastfm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var authLogout bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Last.fm",
	Long: `Authenticate with Last.fm to enable scrobbling.

This command will guide you through the Last.fm authentication process:
1. You'll be prompted to enter your Last.fm API key and secret
2. A browser URL will be provided for you to authorize the application
3. After authorization, the session is handed to the daemon (or written
   to the settings database when the daemon is not running)

Changing the user drops scrobbles cached for the previous one.

You can get API credentials from: https://www.last.fm/api/account/create`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().BoolVar(&authLogout, "logout", false, "Forget the current Last.fm session")
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	api, cfg, err := clientFromConfig()
	if err != nil {
		return err
	}

	if authLogout {
		if err := storeSession(ctx, api, cfg, "", ""); err != nil {
			return err
		}
		fmt.Println("✓ Logged out of Last.fm")
		return nil
	}

	fmt.Println("Last.fm Authentication")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("You can get API credentials from: https://www.last.fm/api/account/create")
	fmt.Println()

	// Check if we already have credentials
	if cfg.LastFM.APIKey != "" && cfg.LastFM.APISecret != "" {
		fmt.Printf("Found existing API credentials.\n")
		fmt.Printf("API Key: %s\n", cfg.LastFM.APIKey)
		fmt.Print("\nUse existing credentials? [Y/n]: ")
		response, err := reader.ReadString('\n')
		if err != nil {
			response = "y"
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			cfg.LastFM.APIKey = ""
			cfg.LastFM.APISecret = ""
		}
	}

	if cfg.LastFM.APIKey == "" {
		fmt.Print("Enter your Last.fm API Key: ")
		apiKey, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		cfg.LastFM.APIKey = strings.TrimSpace(apiKey)
	}

	if cfg.LastFM.APISecret == "" {
		fmt.Print("Enter your Last.fm API Secret: ")
		apiSecret, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API secret: %w", err)
		}
		cfg.LastFM.APISecret = strings.TrimSpace(apiSecret)
	}

	if cfg.LastFM.APIKey == "" || cfg.LastFM.APISecret == "" {
		return fmt.Errorf("API key and secret are required")
	}

	client, err := scrobbler.New(lastfm.Config{
		APIKey:    cfg.LastFM.APIKey,
		APISecret: cfg.LastFM.APISecret,
	})
	if err != nil {
		return err
	}

	fmt.Println("\nGenerating authentication token...")
	token, authURL, err := client.AuthenticateWithToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate auth token: %w", err)
	}

	fmt.Println("\nPlease visit this URL to authorize playerhub:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Println("After authorizing, press Enter to continue...")
	_, _ = reader.ReadString('\n')

	// Get session key (with retries)
	fmt.Println("Retrieving session key...")
	var sessionKey, username string
	maxRetries := 3
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		sessionKey, username, err = client.GetSession(ctx, token)
		if err == nil {
			break
		}

		if i < maxRetries-1 {
			fmt.Printf("Failed to retrieve session (attempt %d/%d). Retrying in %v...\n",
				i+1, maxRetries, retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to get session key after %d attempts: %w", maxRetries, err)
	}

	// API credentials live in the config file, the session in the daemon
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	if err := storeSession(ctx, api, cfg, sessionKey, username); err != nil {
		return err
	}

	fmt.Printf("\n✓ Authenticated as %s\n", username)
	fmt.Printf("✓ API credentials saved to %s/config.yaml\n", config.GetConfigDir())
	fmt.Println("\nStart 'playerhub daemon' (or restart it if the credentials changed) to scrobble.")

	return nil
}

// storeSession hands the session to the running daemon, or writes it to
// the settings database directly when no daemon answers.
func storeSession(ctx context.Context, api *apiClient, cfg *config.Config, key, name string) error {
	var err error
	if key == "" {
		err = api.clearSession(ctx)
	} else {
		err = api.setSession(ctx, key, name)
	}
	if !errors.Is(err, errDaemonNotRunning) {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := state.New(db, zerolog.Nop(), state.Options{})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.LocalSettings.Set("lastfmSessionKey", key); err != nil {
		return err
	}
	return st.LocalSettings.Set("lastfmSessionName", name)
}
