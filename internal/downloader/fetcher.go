package downloader

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

// FetchResponse is the raw result of a single HTTP exchange.
type FetchResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher performs a single GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
	// ContentLength probes the resource size via HEAD; ok is false when
	// the server does not advertise one or the probe fails.
	ContentLength(ctx context.Context, rawURL string) (length int64, ok bool)
}

// CredentialCarrier is implemented by fetchers that accept session
// cookies. Hosts is the set of hosts the credentials apply to.
type CredentialCarrier interface {
	SetCredentials(creds map[string]string, hosts []string)
}

// defaultUserAgents rotates through realistic browser identities so a run
// does not present a single fingerprint to the remote.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// HTTPFetcherConfig controls the HTTP fetcher.
type HTTPFetcherConfig struct {
	Timeout    time.Duration
	UserAgents []string
}

// HTTPFetcher implements Fetcher over net/http with a shared cookie jar
// and rotating browser-like request headers.
type HTTPFetcher struct {
	client *http.Client
	jar    *cookiejar.Jar
	cfg    HTTPFetcherConfig

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewHTTPFetcher builds a fetcher with connection pooling and a cookie
// jar shared across all requests of the run.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("init cookie jar: %w", err)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Jar:       jar,
			Transport: newHTTPTransport(),
		},
		jar:  jar,
		cfg:  cfg,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Fetch executes a single GET with a per-call timeout. Transport errors
// come back as errors; HTTP status handling belongs to the caller.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (FetchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("build request: %w", err)
	}
	f.applyHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("read body: %w", err)
	}
	return FetchResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// ContentLength issues a HEAD request and returns the advertised size.
func (f *HTTPFetcher) ContentLength(ctx context.Context, rawURL string) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, false
	}
	f.applyHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 || resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

// SetCredentials installs session cookies for every host in hosts,
// replacing any previous values with the same names.
func (f *HTTPFetcher) SetCredentials(creds map[string]string, hosts []string) {
	for _, host := range hosts {
		u := &url.URL{Scheme: "https", Host: host, Path: "/"}
		cookies := make([]*http.Cookie, 0, len(creds))
		for name, value := range creds {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
		}
		f.jar.SetCookies(u, cookies)
	}
}

func (f *HTTPFetcher) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.pickUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8,application/pdf")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Cache-Control", "max-age=0")
}

func (f *HTTPFetcher) pickUserAgent() string {
	f.randMu.Lock()
	defer f.randMu.Unlock()
	return f.cfg.UserAgents[f.rand.Intn(len(f.cfg.UserAgents))]
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
