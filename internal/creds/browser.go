package creds

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// consentButtonLabels are clicked best-effort after navigation; sites gate
// documents behind simple acknowledgement walls before any harder check.
var consentButtonLabels = []string{
	"I am not a robot",
	"I am over 18",
	"Accept",
	"Continue",
}

// BrowserConfig controls the interactive refresh session.
type BrowserConfig struct {
	// GateURL is the page whose session cookies unlock downloads.
	GateURL string
	// Headless runs Chrome without a window. Interactive challenges
	// usually need a visible browser plus a human.
	Headless bool
	// SettleWait is how long to leave the page open after the consent
	// clicks so challenges can be solved and cookies can land.
	SettleWait time.Duration
	// StorageStatePath, when set, receives the exported cookies for the
	// next run.
	StorageStatePath string
}

// BrowserRefresher drives a real Chrome session to mint fresh cookies.
type BrowserRefresher struct {
	cfg    BrowserConfig
	logger *zap.Logger
}

// NewBrowserRefresher builds a refresher for the configured gate page.
func NewBrowserRefresher(cfg BrowserConfig, logger *zap.Logger) (*BrowserRefresher, error) {
	if cfg.GateURL == "" {
		return nil, fmt.Errorf("creds: gate URL is required")
	}
	if cfg.SettleWait <= 0 {
		cfg.SettleWait = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserRefresher{cfg: cfg, logger: logger}, nil
}

// Refresh opens the gate page, walks the consent buttons, waits for the
// session to settle, and exports the resulting cookies.
func (r *BrowserRefresher) Refresh(ctx context.Context) (map[string]string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	r.logger.Info("opening browser session for credential refresh",
		zap.String("url", r.cfg.GateURL),
		zap.Bool("headless", r.cfg.Headless),
	)

	var exported []*network.Cookie
	actions := []chromedp.Action{
		chromedp.Navigate(r.cfg.GateURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	for _, label := range consentButtonLabels {
		actions = append(actions, r.clickIfPresent(label))
	}
	actions = append(actions,
		chromedp.Sleep(r.cfg.SettleWait),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().Do(ctx)
			if err != nil {
				return fmt.Errorf("export cookies: %w", err)
			}
			exported = cookies
			return nil
		}),
	)
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("browser session: %w", err)
	}

	creds := make(map[string]string, len(exported))
	stored := make(map[string]storedCookie, len(exported))
	for _, c := range exported {
		creds[c.Name] = c.Value
		stored[c.Name] = storedCookie{Name: c.Name, Value: c.Value, Domain: c.Domain}
	}
	if r.cfg.StorageStatePath != "" {
		if err := SaveStorageState(r.cfg.StorageStatePath, stored); err != nil {
			r.logger.Warn("could not persist refreshed storage state", zap.Error(err))
		}
	}
	r.logger.Info("browser session exported cookies", zap.Int("count", len(creds)))
	return creds, nil
}

// clickIfPresent clicks the first button or link carrying the label, and
// swallows the miss when the page has no such element.
func (r *BrowserRefresher) clickIfPresent(label string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		sel := fmt.Sprintf(
			`//button[contains(., %[1]q)] | //a[contains(., %[1]q)] | //input[@type="submit" and contains(@value, %[1]q)]`,
			label,
		)
		clickCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := chromedp.Click(sel, chromedp.BySearch).Do(clickCtx); err == nil {
			r.logger.Debug("clicked consent element", zap.String("label", label))
		}
		// A missing button is the normal case, not a failure.
		return ctx.Err()
	})
}
