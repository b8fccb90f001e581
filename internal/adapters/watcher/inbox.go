// Package watcher ingests PDF files dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	processedDir = "processed"
	failedDir    = "failed"

	defaultSettle      = 750 * time.Millisecond
	defaultFileTimeout = 10 * time.Minute
)

// Metrics is satisfied by metrics.WorkerMetrics.
type Metrics interface {
	StartDocument()
	FinishDocument(service string, duration time.Duration, err error)
	ObserveFileWait(service string, wait time.Duration)
}

type Options struct {
	// Settle is how long a file must stay unchanged before it is ingested.
	Settle      time.Duration
	FileTimeout time.Duration
	Metrics     Metrics
	Service     string
}

// Inbox watches one directory. Files are ingested one at a time, then moved
// to processed/ or failed/ next to it.
type Inbox struct {
	dir      string
	ingestor ports.DocumentIngestor
	opts     Options
}

func NewInbox(dir string, ingestor ports.DocumentIngestor, opts Options) *Inbox {
	if opts.Settle <= 0 {
		opts.Settle = defaultSettle
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = defaultFileTimeout
	}
	if opts.Service == "" {
		opts.Service = "worker"
	}
	return &Inbox{dir: dir, ingestor: ingestor, opts: opts}
}

// Run blocks until ctx is cancelled.
func (in *Inbox) Run(ctx context.Context) error {
	for _, sub := range []string{in.dir, filepath.Join(in.dir, processedDir), filepath.Join(in.dir, failedDir)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(in.dir); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}
	slog.Info("inbox_watching", "dir", in.dir)

	if err := in.drainExisting(ctx); err != nil {
		return err
	}

	ready := make(chan string)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, timer := range pending {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !in.handleEvent(event) {
				continue
			}
			path := event.Name
			if timer, exists := pending[path]; exists {
				timer.Reset(in.opts.Settle)
				continue
			}
			pending[path] = time.AfterFunc(in.opts.Settle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(pending, path)
			in.process(ctx, path)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox_watch_error", "dir", in.dir, "error", err)
		}
	}
}

// handleEvent reports whether the event names a PDF that should be ingested.
func (in *Inbox) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if !isCandidate(event.Name) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return false
	}
	return true
}

func (in *Inbox) drainExisting(ctx context.Context) error {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isCandidate(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return nil
		}
		in.process(ctx, filepath.Join(in.dir, name))
	}
	return nil
}

// process ingests one file and moves it out of the inbox.
func (in *Inbox) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("inbox_stat_failed", "path", path, "error", err)
		}
		return
	}

	if in.opts.Metrics != nil {
		in.opts.Metrics.ObserveFileWait(in.opts.Service, time.Since(info.ModTime()))
		in.opts.Metrics.StartDocument()
	}
	start := time.Now()

	fileCtx, cancel := context.WithTimeout(ctx, in.opts.FileTimeout)
	documentID, err := in.ingestor.IngestFile(fileCtx, filepath.Base(path), path)
	cancel()

	if in.opts.Metrics != nil {
		in.opts.Metrics.FinishDocument(in.opts.Service, time.Since(start), err)
	}

	target := processedDir
	if err != nil {
		target = failedDir
		slog.Error("inbox_ingest_failed", "path", path, "error", err)
	} else {
		slog.Info("inbox_ingested", "path", path, "document_id", documentID)
	}

	dest := filepath.Join(in.dir, target, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		slog.Warn("inbox_move_failed", "path", path, "dest", dest, "error", err)
	}
}

func isCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, ".pdf")
}
