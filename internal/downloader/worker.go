package downloader

import (
	"bytes"
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/metrics"
)

// worker drains the shared queue and resolves one task at a time. Workers
// share the resolver, limiter, and block state through the engine; nothing
// here is worker-local except the logger.
type worker struct {
	eng *Engine
	id  int
	log *zap.Logger
}

func (w *worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, ok := w.eng.queue.Take()
		if !ok {
			return
		}
		res := w.process(ctx, task)
		w.eng.finish(ctx, res)
	}
}

func (w *worker) process(ctx context.Context, task Task) Result {
	name := w.eng.resolver.BaseName(task.URL)

	if w.eng.isCompleted(task.URL) {
		w.log.Debug("skipping, already completed", zap.String("url", task.URL))
		return Result{Task: task, Outcome: OutcomeSkipped, Detail: "completed in a previous run"}
	}
	if w.eng.cfg.ResumeMode != ResumeOff {
		if dest, ok := w.eng.resolver.Exists(name); ok {
			if w.verifyExisting(ctx, task.URL, dest) {
				w.log.Debug("skipping, verified on disk", zap.String("path", dest))
				return Result{Task: task, Outcome: OutcomeSkipped, Path: dest, Detail: "existing file verified"}
			}
			// Stale partial or junk from an interrupted run; redownload
			// to the same name rather than shifting to a -2 suffix.
			w.log.Warn("existing file failed verification, replacing",
				zap.String("url", task.URL), zap.String("path", dest))
			if err := os.Remove(dest); err != nil {
				ferr := &FetchError{Kind: KindFilesystem, Err: err, Detail: "remove stale file"}
				return Result{Task: task, Outcome: OutcomeFailed, Detail: ferr.Error()}
			}
		}
	}
	dest := w.eng.resolver.Reserve(name)
	return w.download(ctx, task, dest)
}

// verifyExisting decides whether a file already on disk satisfies the
// task. Fast mode trusts existence; strict mode checks the PDF signature
// and, when the server reports one, the remote Content-Length.
func (w *worker) verifyExisting(ctx context.Context, rawURL, dest string) bool {
	if w.eng.cfg.ResumeMode != ResumeStrict {
		return true
	}
	f, err := os.Open(dest)
	if err != nil {
		return false
	}
	head := make([]byte, len(pdfMagic))
	_, rerr := io.ReadFull(f, head)
	info, serr := f.Stat()
	f.Close()
	if rerr != nil || serr != nil || !bytes.Equal(head, pdfMagic) {
		return false
	}
	if want, ok := w.eng.fetcher.ContentLength(ctx, rawURL); ok && want > 0 && want != info.Size() {
		return false
	}
	return true
}

func (w *worker) download(ctx context.Context, task Task, dest string) Result {
	for attempt := 0; ; attempt++ {
		if err := w.eng.blocks.AwaitOpen(ctx); err != nil {
			return Result{Task: task, Outcome: OutcomeFailed, Detail: "canceled while waiting for block to clear"}
		}
		if err := w.eng.limiter.Wait(ctx, task.URL); err != nil {
			return Result{Task: task, Outcome: OutcomeFailed, Detail: "canceled while pacing"}
		}

		resp, err := w.eng.fetcher.Fetch(ctx, task.URL)
		ferr := Classify(resp.StatusCode, resp.Header, resp.Body, err, w.eng.classifier)
		if ferr == nil {
			if w.eng.cfg.Validate {
				if verr := w.eng.validator.Validate(resp.Body); verr != nil {
					w.log.Warn("corrupt payload",
						zap.String("url", task.URL), zap.Error(verr))
					return Result{Task: task, Outcome: OutcomeCorrupt, Detail: verr.Error()}
				}
			}
			if werr := writeAtomic(dest, resp.Body); werr != nil {
				ferr := &FetchError{Kind: KindFilesystem, Err: werr, Detail: "write payload"}
				return Result{Task: task, Outcome: OutcomeFailed, Detail: ferr.Error()}
			}
			w.log.Info("downloaded",
				zap.String("url", task.URL),
				zap.String("path", dest),
				zap.Int("bytes", len(resp.Body)))
			return Result{Task: task, Outcome: OutcomeDownloaded, Path: dest, Bytes: len(resp.Body)}
		}

		if ferr.Kind == KindBlocked {
			w.eng.blocks.Trip(w.eng.cfg.BlockPause)
		}
		if !w.eng.policy.ShouldRetry(ferr, attempt) {
			w.log.Warn("giving up",
				zap.String("url", task.URL),
				zap.Int("attempts", attempt+1),
				zap.Error(ferr))
			return Result{Task: task, Outcome: OutcomeFailed, Detail: ferr.Error()}
		}
		metrics.ObserveRetry(string(ferr.Kind))
		wait := w.eng.policy.Backoff(ferr, attempt)
		w.log.Debug("retrying",
			zap.String("url", task.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(ferr))
		if err := sleepCtx(ctx, wait); err != nil {
			return Result{Task: task, Outcome: OutcomeFailed, Detail: "canceled during backoff"}
		}
	}
}

// writeAtomic materializes the payload through a temp sibling and a
// rename, so a crash mid-write never leaves a half file under the final
// name.
func writeAtomic(dest string, body []byte) error {
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
