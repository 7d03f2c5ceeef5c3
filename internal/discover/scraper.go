// Package discover builds download lists by scraping paginated listing
// pages for document links.
package discover

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls one scrape of a paginated listing.
type Config struct {
	// BaseURL is the listing page. When StartPage/EndPage span a range,
	// "?<PageParam>=N" is appended for each page; page 0 (or 1) is the
	// bare BaseURL.
	BaseURL   string
	PageParam string
	StartPage int
	EndPage   int
	// Cookies, when set, is sent as the Cookie header so gated listings
	// render their links.
	Cookies string
	// Delay spaces out page fetches.
	Delay     time.Duration
	UserAgent string
}

// Scraper collects .pdf anchor targets from listing pages.
type Scraper struct {
	cfg    Config
	logger *zap.Logger
}

// NewScraper validates the config and returns a scraper.
func NewScraper(cfg Config, logger *zap.Logger) (*Scraper, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("discover: base URL is required")
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.StartPage <= 0 {
		cfg.StartPage = 1
	}
	if cfg.EndPage < cfg.StartPage {
		cfg.EndPage = cfg.StartPage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{cfg: cfg, logger: logger}, nil
}

// Run visits every listing page and returns the absolute PDF URLs found,
// deduplicated and sorted.
func (s *Scraper) Run() ([]string, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	opts := []colly.CollectorOption{}
	if s.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(s.cfg.UserAgent))
	}
	collector := colly.NewCollector(opts...)
	if s.cfg.Delay > 0 {
		if err := collector.Limit(&colly.LimitRule{
			DomainGlob: "*",
			Delay:      s.cfg.Delay,
		}); err != nil {
			return nil, fmt.Errorf("apply rate limit: %w", err)
		}
	}

	collector.OnRequest(func(r *colly.Request) {
		if s.cfg.Cookies != "" {
			r.Headers.Set("Cookie", s.cfg.Cookies)
		}
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if !strings.Contains(strings.ToLower(href), ".pdf") {
			return
		}
		abs := e.Request.AbsoluteURL(href)
		if abs == "" {
			return
		}
		mu.Lock()
		seen[abs] = struct{}{}
		mu.Unlock()
	})
	collector.OnError(func(r *colly.Response, err error) {
		s.logger.Warn("listing page failed",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status", r.StatusCode),
			zap.Error(err),
		)
	})

	for page := s.cfg.StartPage; page <= s.cfg.EndPage; page++ {
		target, err := s.pageURL(page)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("visiting listing page", zap.String("url", target))
		if err := collector.Visit(target); err != nil {
			s.logger.Warn("visit failed", zap.String("url", target), zap.Error(err))
		}
	}
	collector.Wait()

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	s.logger.Info("discovery finished",
		zap.Int("pages", s.cfg.EndPage-s.cfg.StartPage+1),
		zap.Int("links", len(urls)),
	)
	return urls, nil
}

func (s *Scraper) pageURL(page int) (string, error) {
	if page == 1 {
		return s.cfg.BaseURL, nil
	}
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	q := u.Query()
	q.Set(s.cfg.PageParam, fmt.Sprint(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WriteLinkFile writes one URL per line, the format the fetch command
// reads back.
func WriteLinkFile(path string, urls []string) error {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write link file: %w", err)
	}
	return nil
}
