// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/reference"
)

// ReferenceRefresher re-imports the reference table from a PDF.
type ReferenceRefresher interface {
	RefreshReference(ctx context.Context, path string, debug io.Writer) (*reference.Table, error)
}

// RunRecorder counts refresh runs by result.
type RunRecorder interface {
	RefreshRun(result string)
}

// Job configures the reference refresh.
type Job struct {
	Spec      string // standard 5-field cron expression
	PDFPath   string
	DebugPath string // raw text dump, "" to disable
	Timeout   time.Duration
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	refresher ReferenceRefresher
	recorder  RunRecorder
	job       Job
	logger    *slog.Logger

	// running guards against overlapping refreshes.
	running sync.Mutex
}

// NewScheduler creates a new job scheduler.
func NewScheduler(refresher ReferenceRefresher, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if job.Timeout <= 0 {
		job.Timeout = 10 * time.Minute
	}

	return &Scheduler{
		cron:      c,
		refresher: refresher,
		job:       job,
		logger:    logger,
	}
}

// WithRecorder sets the run counter.
func (s *Scheduler) WithRecorder(r RunRecorder) *Scheduler {
	s.recorder = r
	return s
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if s.job.PDFPath == "" {
		return errors.New("reference PDF path is not configured")
	}
	if _, err := s.cron.AddFunc(s.job.Spec, s.refresh); err != nil {
		return fmt.Errorf("failed to schedule reference refresh: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("spec", s.job.Spec),
		slog.String("pdf", s.job.PDFPath),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs the refresh synchronously and returns its result.
func (s *Scheduler) RunNow() string {
	return s.runOnce()
}

func (s *Scheduler) refresh() {
	s.runOnce()
}

// runOnce re-imports the PDF unless a previous run is still going.
func (s *Scheduler) runOnce() string {
	if !s.running.TryLock() {
		s.logger.Warn("reference refresh still running, skipping")
		return "skipped"
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.job.Timeout)
	defer cancel()

	result := s.run(ctx)
	if s.recorder != nil {
		s.recorder.RefreshRun(result)
	}
	return result
}

func (s *Scheduler) run(ctx context.Context) string {
	start := time.Now()
	s.logger.Info("starting reference refresh", slog.String("pdf", s.job.PDFPath))

	var debug io.Writer
	if s.job.DebugPath != "" {
		f, err := os.Create(s.job.DebugPath)
		if err != nil {
			s.logger.Warn("failed to open debug extract", slog.Any("error", err))
		} else {
			defer f.Close()
			debug = f
		}
	}

	table, err := s.refresher.RefreshReference(ctx, s.job.PDFPath, debug)
	if err != nil {
		s.logger.Error("reference refresh failed", slog.Any("error", err))
		return "error"
	}
	if table == nil {
		return "empty"
	}

	s.logger.Info("reference refresh completed",
		slog.Int("entries", table.Len()),
		slog.Int("ambiguous", table.AmbiguousCount()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return "ok"
}
