package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/discover"
)

// newScrapeCmd creates the 'scrape' subcommand, which builds the link
// file the fetch command consumes.
func newScrapeCmd() *cobra.Command {
	var (
		baseURL   string
		startPage int
		endPage   int
		outFile   string
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect PDF links from a paginated listing into a link file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if baseURL != "" {
				cfg.Scrape.BaseURL = baseURL
			}
			if startPage > 0 {
				cfg.Scrape.StartPage = startPage
			}
			if endPage > 0 {
				cfg.Scrape.EndPage = endPage
			}
			if outFile != "" {
				cfg.Scrape.OutFile = outFile
			}

			scraper, err := discover.NewScraper(discover.Config{
				BaseURL:   cfg.Scrape.BaseURL,
				StartPage: cfg.Scrape.StartPage,
				EndPage:   cfg.Scrape.EndPage,
				Cookies:   cfg.Credentials.Cookies,
				UserAgent: cfg.Scrape.UserAgent,
				Delay:     time.Second,
			}, logger)
			if err != nil {
				return err
			}

			urls, err := scraper.Run()
			if err != nil {
				return err
			}
			if err := discover.WriteLinkFile(cfg.Scrape.OutFile, urls); err != nil {
				return err
			}
			logger.Info("wrote link file",
				zap.String("path", cfg.Scrape.OutFile),
				zap.Int("links", len(urls)),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "listing page URL (overrides config)")
	cmd.Flags().IntVar(&startPage, "start-page", 0, "first listing page")
	cmd.Flags().IntVar(&endPage, "end-page", 0, "last listing page")
	cmd.Flags().StringVar(&outFile, "out", "", "output link file (overrides config)")
	return cmd
}
