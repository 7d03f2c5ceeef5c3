package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/metrics"
)

// Resume check modes. Fast trusts file existence; strict re-verifies the
// PDF signature and remote length before skipping.
const (
	ResumeOff    = "off"
	ResumeFast   = "fast"
	ResumeStrict = "strict"
)

// CompletedStore persists the set of URLs that reached a terminal
// downloaded/skipped state, so interrupted runs pick up where they left
// off.
type CompletedStore interface {
	Load(ctx context.Context) ([]string, error)
	Add(ctx context.Context, url string) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// Refresher obtains fresh session credentials when the server starts
// serving junk instead of payloads.
type Refresher interface {
	Refresh(ctx context.Context) (map[string]string, error)
}

// EngineConfig carries everything a run needs. Fetcher and OutputDir are
// required; nil collaborators get inert defaults.
type EngineConfig struct {
	URLs      []string
	OutputDir string

	Concurrency      int
	ResumeMode       string
	Validate         bool
	BlockPause       time.Duration
	CorruptThreshold int
	FlushEvery       int
	ProgressInterval time.Duration

	Fetcher    Fetcher
	Limiter    *HostLimiter
	Blocks     *BlockState
	Classifier *BlockClassifier
	Policy     *BackoffPolicy
	Store      CompletedStore
	Refresher  Refresher
	Logger     *zap.Logger
}

// Engine owns one run: it loads the completed set, fans the queue out to
// workers, and folds their results into the tracker and the store.
type Engine struct {
	cfg        EngineConfig
	runID      string
	queue      *TaskQueue
	duplicates int
	resolver   *Resolver
	limiter    *HostLimiter
	blocks     *BlockState
	classifier *BlockClassifier
	policy     *BackoffPolicy
	fetcher    Fetcher
	validator  PDFValidator
	tracker    *Tracker
	store      CompletedStore
	refresher  Refresher
	logger     *zap.Logger
	hosts      []string

	completedMu  sync.Mutex
	completed    map[string]struct{}
	pendingFlush int

	refreshMu sync.Mutex
}

// NewEngine validates the config, creates the output directory, and
// dedupes the input into a run-ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("downloader: fetcher is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("downloader: output directory is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ResumeMode == "" {
		cfg.ResumeMode = ResumeFast
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewHostLimiter(0, 0, 0)
	}
	if cfg.Blocks == nil {
		cfg.Blocks = NewBlockState(cfg.Logger)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewBlockClassifier(nil)
	}
	if cfg.Policy == nil {
		cfg.Policy = NewBackoffPolicy(5, 0, 0)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	queue, dups := NewTaskQueue(cfg.URLs)
	runID := uuid.NewString()
	return &Engine{
		cfg:        cfg,
		runID:      runID,
		queue:      queue,
		duplicates: dups,
		resolver:   NewResolver(cfg.OutputDir, ".pdf"),
		limiter:    cfg.Limiter,
		blocks:     cfg.Blocks,
		classifier: cfg.Classifier,
		policy:     cfg.Policy,
		fetcher:    cfg.Fetcher,
		tracker:    NewTracker(runID, queue.Len(), cfg.Logger),
		store:      cfg.Store,
		refresher:  cfg.Refresher,
		logger:     cfg.Logger,
		hosts:      uniqueHosts(cfg.URLs),
		completed:  make(map[string]struct{}),
	}, nil
}

// RunID identifies this run in logs and the progress endpoint.
func (e *Engine) RunID() string { return e.runID }

// Progress returns a point-in-time snapshot for the status endpoint.
func (e *Engine) Progress() Snapshot { return e.tracker.Snapshot() }

// Run processes every queued task to a terminal outcome and returns the
// run summary. A canceled context stops workers between tasks; the
// summary then covers only what finished.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	if e.store != nil {
		urls, err := e.store.Load(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("load completed set: %w", err)
		}
		for _, u := range urls {
			e.completed[u] = struct{}{}
		}
		e.logger.Info("loaded completed set", zap.Int("entries", len(urls)))
	}

	e.logger.Info("starting run",
		zap.String("run_id", e.runID),
		zap.Int("tasks", e.queue.Len()),
		zap.Int("duplicates", e.duplicates),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	reportCtx, stopReport := context.WithCancel(context.Background())
	var reportWG sync.WaitGroup
	reportWG.Add(1)
	go func() {
		defer reportWG.Done()
		e.tracker.Report(reportCtx, e.cfg.ProgressInterval)
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			w := &worker{eng: e, id: id, log: e.logger.With(zap.Int("worker", id))}
			w.run(ctx)
		}(i)
	}
	wg.Wait()
	stopReport()
	reportWG.Wait()

	if e.store != nil {
		if err := e.store.Flush(context.Background()); err != nil {
			e.logger.Warn("final completed-set flush failed", zap.Error(err))
		}
	}
	return Summary{
		Snapshot:   e.tracker.Snapshot(),
		FailedURLs: e.tracker.FailedURLs(),
		Duplicates: e.duplicates,
	}, ctx.Err()
}

// finish folds one terminal result into the tracker, the completed set,
// and the corrupt-streak escalation.
func (e *Engine) finish(ctx context.Context, res Result) {
	streak := e.tracker.Record(res)
	switch res.Outcome {
	case OutcomeDownloaded, OutcomeSkipped:
		e.markCompleted(ctx, res.Task.URL)
	case OutcomeCorrupt:
		if e.cfg.CorruptThreshold > 0 && streak >= e.cfg.CorruptThreshold {
			e.maybeRefresh(ctx)
		}
	}
}

func (e *Engine) isCompleted(url string) bool {
	e.completedMu.Lock()
	defer e.completedMu.Unlock()
	_, ok := e.completed[url]
	return ok
}

func (e *Engine) markCompleted(ctx context.Context, url string) {
	e.completedMu.Lock()
	if _, ok := e.completed[url]; ok {
		e.completedMu.Unlock()
		return
	}
	e.completed[url] = struct{}{}
	e.pendingFlush++
	flush := e.cfg.FlushEvery > 0 && e.pendingFlush >= e.cfg.FlushEvery
	if flush {
		e.pendingFlush = 0
	}
	e.completedMu.Unlock()

	if e.store == nil {
		return
	}
	if err := e.store.Add(ctx, url); err != nil {
		e.logger.Warn("record completed url", zap.String("url", url), zap.Error(err))
		return
	}
	if flush {
		if err := e.store.Flush(ctx); err != nil {
			e.logger.Warn("flush completed set", zap.Error(err))
		}
	}
}

// maybeRefresh runs the one-shot credential escalation. Concurrent
// callers serialize on refreshMu; whoever loses the race sees the streak
// already reset and returns without a second refresh.
func (e *Engine) maybeRefresh(ctx context.Context) {
	if e.refresher == nil {
		return
	}
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	if e.tracker.CorruptStreak() < e.cfg.CorruptThreshold {
		return
	}
	e.logger.Warn("corrupt streak hit threshold, refreshing credentials",
		zap.Int("streak", e.tracker.CorruptStreak()),
		zap.Int("threshold", e.cfg.CorruptThreshold),
	)
	creds, err := e.refresher.Refresh(ctx)
	if err != nil {
		e.logger.Error("credential refresh failed, continuing with current session", zap.Error(err))
		e.tracker.ResetStreak()
		return
	}
	if carrier, ok := e.fetcher.(CredentialCarrier); ok {
		carrier.SetCredentials(creds, e.hosts)
	}
	e.tracker.ResetStreak()
	metrics.ObserveCredentialRefresh()
	e.logger.Info("credentials refreshed", zap.Int("cookies", len(creds)))
}

func uniqueHosts(urls []string) []string {
	seen := make(map[string]struct{})
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		seen[u.Hostname()] = struct{}{}
	}
	hosts := make([]string, 0, len(seen))
	for h := range seen {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
