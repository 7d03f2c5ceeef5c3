package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/config"
	"github.com/pdfpull/pdfpull/internal/creds"
	"github.com/pdfpull/pdfpull/internal/downloader"
	"github.com/pdfpull/pdfpull/internal/resume"
	"github.com/pdfpull/pdfpull/internal/status"
)

// newFetchCmd creates the 'fetch' subcommand, the main download run.
func newFetchCmd() *cobra.Command {
	var inputFlag string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download every URL in the input link file",
		Long: `Reads a line-per-URL link file and downloads each document into the
output directory, pacing requests per host and pausing globally when the
server signals a block. Interrupted runs resume where they stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd.Context(), inputFlag)
		},
	}
	cmd.Flags().StringVar(&inputFlag, "input", "", "link file (overrides config)")
	return cmd
}

func runFetch(parent context.Context, inputFlag string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if inputFlag != "" {
		cfg.Input = inputFlag
	}
	urls, err := readLinkFile(cfg.Input)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		logger.Warn("link file is empty, nothing to do", zap.String("input", cfg.Input))
		return nil
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := downloader.NewHTTPFetcher(downloader.HTTPFetcherConfig{
		Timeout:    cfg.RequestTimeout(),
		UserAgents: cfg.Fetch.UserAgents,
	})
	if err != nil {
		return err
	}
	if cookies := loadConfiguredCredentials(cfg, logger); len(cookies) > 0 {
		fetcher.SetCredentials(cookies, hostsOf(urls))
		logger.Info("loaded session cookies", zap.Int("count", len(cookies)))
	}

	store, err := buildResumeStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close(context.Background()) }()
	}

	eng, err := downloader.NewEngine(downloader.EngineConfig{
		URLs:             urls,
		OutputDir:        cfg.OutputDir,
		Concurrency:      cfg.Fetch.Concurrency,
		ResumeMode:       string(cfg.Resume.Mode),
		Validate:         cfg.Fetch.Validate,
		BlockPause:       cfg.BlockPause(),
		CorruptThreshold: cfg.Fetch.CorruptThreshold,
		FlushEvery:       cfg.Resume.FlushEvery,
		ProgressInterval: time.Duration(cfg.Fetch.ProgressMs) * time.Millisecond,
		Fetcher:          fetcher,
		Limiter:          downloader.NewHostLimiter(cfg.MinDelay(), cfg.MaxDelay(), cfg.Fetch.GlobalRPS),
		Blocks:           downloader.NewBlockState(logger),
		Classifier:       downloader.NewBlockClassifier(cfg.Fetch.BlockMarkers),
		Policy: downloader.NewBackoffPolicy(
			cfg.Fetch.Retries,
			time.Duration(cfg.Fetch.BackoffBaseSec)*time.Second,
			time.Duration(cfg.Fetch.BackoffMaxSec)*time.Second,
		),
		Store:     store,
		Refresher: buildRefresher(cfg, logger),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if cfg.Status.Enabled {
		statusSrv := status.New(fmt.Sprintf(":%d", cfg.Status.Port), eng, logger)
		statusSrv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = statusSrv.Shutdown(shutdownCtx)
		}()
	}

	summary, runErr := eng.Run(ctx)
	if err := writeFailedFile(cfg.FailedFile, summary.FailedURLs); err != nil {
		logger.Warn("could not write failed-URL report", zap.Error(err))
	}

	fmt.Printf("downloaded=%d skipped=%d failed=%d corrupt=%d duplicates=%d elapsed=%s\n",
		summary.Downloaded, summary.Skipped, summary.Failed, summary.Corrupt,
		summary.Duplicates, summary.Elapsed.Round(time.Second))

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	return nil
}

// readLinkFile reads a line-per-URL file, skipping blanks and comments.
func readLinkFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read link file: %w", err)
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

// loadConfiguredCredentials merges cookies from every configured source;
// the inline string wins over files.
func loadConfiguredCredentials(cfg config.Config, logger *zap.Logger) map[string]string {
	out := map[string]string{}
	if cfg.Credentials.StorageState != "" {
		if cookies, err := creds.LoadStorageState(cfg.Credentials.StorageState); err != nil {
			logger.Warn("could not load storage state", zap.Error(err))
		} else {
			out = creds.Merge(out, cookies)
		}
	}
	if cfg.Credentials.CookieFile != "" {
		if cookies, err := creds.LoadCookieFile(cfg.Credentials.CookieFile); err != nil {
			logger.Warn("could not load cookie file", zap.Error(err))
		} else {
			out = creds.Merge(out, cookies)
		}
	}
	if cfg.Credentials.Cookies != "" {
		out = creds.Merge(out, creds.ParseCookieString(cfg.Credentials.Cookies))
	}
	return out
}

func buildResumeStore(ctx context.Context, cfg config.Config) (downloader.CompletedStore, error) {
	if cfg.Resume.Mode == config.ResumeOff {
		return nil, nil
	}
	switch cfg.Resume.Provider {
	case "postgres":
		store, err := resume.NewPostgresStore(ctx, cfg.Resume.DSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres resume store: %w", err)
		}
		return store, nil
	default:
		store, err := resume.NewFileStore(cfg.Resume.File)
		if err != nil {
			return nil, fmt.Errorf("init file resume store: %w", err)
		}
		return store, nil
	}
}

func buildRefresher(cfg config.Config, logger *zap.Logger) downloader.Refresher {
	if cfg.Credentials.RefreshURL == "" {
		return nil
	}
	refresher, err := creds.NewBrowserRefresher(creds.BrowserConfig{
		GateURL:          cfg.Credentials.RefreshURL,
		Headless:         cfg.Credentials.Headless,
		StorageStatePath: cfg.Credentials.StorageState,
	}, logger)
	if err != nil {
		logger.Warn("credential refresher unavailable", zap.Error(err))
		return nil
	}
	return refresher
}

func hostsOf(urls []string) []string {
	seen := make(map[string]struct{})
	var hosts []string
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		if _, ok := seen[u.Hostname()]; ok {
			continue
		}
		seen[u.Hostname()] = struct{}{}
		hosts = append(hosts, u.Hostname())
	}
	return hosts
}

// writeFailedFile writes the re-run report, or removes a stale one when
// everything succeeded.
func writeFailedFile(path string, failed []string) error {
	if path == "" {
		return nil
	}
	if len(failed) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	var b strings.Builder
	for _, u := range failed {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
