package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/creds"
)

// newCookiesCmd creates the 'cookies' subcommand: an interactive browser
// session that mints fresh credentials and saves them for later runs.
func newCookiesCmd() *cobra.Command {
	var gateURL string
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Open a browser session to capture fresh session cookies",
		Long: `Opens the gate page in a real browser, walks simple consent buttons,
leaves the window open long enough for a human to solve any challenge,
then exports the session cookies to the configured storage-state file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if gateURL != "" {
				cfg.Credentials.RefreshURL = gateURL
			}
			if cfg.Credentials.RefreshURL == "" {
				return fmt.Errorf("no gate URL: set credentials.refresh_url or pass --url")
			}
			if cfg.Credentials.StorageState == "" {
				cfg.Credentials.StorageState = "storage-state.json"
			}

			refresher, err := creds.NewBrowserRefresher(creds.BrowserConfig{
				GateURL:          cfg.Credentials.RefreshURL,
				Headless:         cfg.Credentials.Headless,
				StorageStatePath: cfg.Credentials.StorageState,
			}, logger)
			if err != nil {
				return err
			}

			cookies, err := refresher.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("saved session cookies",
				zap.Int("count", len(cookies)),
				zap.String("path", cfg.Credentials.StorageState),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&gateURL, "url", "", "gate page URL (overrides config)")
	return cmd
}
