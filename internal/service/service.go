package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olgkv/drivefetch/internal/config"
	"github.com/olgkv/drivefetch/internal/domain"
	"github.com/olgkv/drivefetch/internal/download"
	"github.com/olgkv/drivefetch/internal/drive"
	"github.com/olgkv/drivefetch/internal/metrics"
	"github.com/olgkv/drivefetch/internal/ports"
)

// Resolver opens the download stream of a file identifier.
type Resolver interface {
	Resolve(ctx context.Context, fileID string) (*drive.Resolution, error)
}

// Saver writes a stream to disk.
type Saver interface {
	Save(ctx context.Context, body io.Reader, dest string, size int64, progress download.ProgressFunc) (int64, error)
}

type Option func(*Pool)

func WithReporter(r ports.ProgressReporter) Option {
	return func(p *Pool) { p.reporter = r }
}

func WithHistory(h ports.HistoryStore) Option {
	return func(p *Pool) { p.history = h }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pool) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// Pool runs download tasks on a fixed number of workers.
type Pool struct {
	cfg      config.Config
	resolver Resolver
	saver    Saver
	reporter ports.ProgressReporter
	history  ports.HistoryStore
	metrics  *metrics.Recorder
	logger   *slog.Logger
	newID    func() string

	mu    sync.RWMutex
	tasks []*domain.DownloadTask
}

// New validates cfg and returns a pool. cfg is copied; later changes to the
// caller's value have no effect.
func New(cfg *config.Config, resolver Resolver, saver Saver, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		cfg:      *cfg,
		resolver: resolver,
		saver:    saver,
		reporter: nopReporter{},
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reporter == nil {
		p.reporter = nopReporter{}
	}
	return p, nil
}

// Run queues links in order and blocks until every task is finished. A
// failing task never stops the others.
func (p *Pool) Run(ctx context.Context, links []string) domain.Summary {
	tasks := p.enqueue(links)

	queue := make(chan *domain.DownloadTask, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	workers := p.cfg.MaxThreads
	if workers > len(tasks) {
		workers = len(tasks)
	}
	p.logger.Info("starting downloads", "tasks", len(tasks), "workers", workers, "directory", p.cfg.DownloadDirectory)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for task := range queue {
				p.process(ctx, task)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := make([]domain.DownloadTask, 0, len(tasks))
	for _, t := range tasks {
		result = append(result, p.get(t))
	}
	return domain.Summarize(p.cfg.DownloadDirectory, result)
}

// Snapshot returns copies of every task the pool has seen, in submission order.
func (p *Pool) Snapshot() []domain.DownloadTask {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.DownloadTask, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, *t)
	}
	return out
}

func (p *Pool) enqueue(links []string) []*domain.DownloadTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	tasks := make([]*domain.DownloadTask, 0, len(links))
	for _, link := range links {
		t := &domain.DownloadTask{ID: p.newID(), SourceURL: link, Status: domain.StatusQueued}
		tasks = append(tasks, t)
		p.tasks = append(p.tasks, t)
	}
	return tasks
}

func (p *Pool) process(ctx context.Context, task *domain.DownloadTask) {
	start := time.Now()
	p.update(task, func(t *domain.DownloadTask) {
		t.Status = domain.StatusRunning
		t.StartedAt = start
	})
	p.metrics.TaskStarted()

	written, err := p.execute(ctx, task)

	p.update(task, func(t *domain.DownloadTask) {
		t.BytesWritten = written
		t.FinishedAt = time.Now()
		if err != nil {
			t.Status = domain.StatusFailed
			t.Error = err.Error()
			return
		}
		t.Status = domain.StatusSucceeded
	})
	done := p.get(task)

	if err != nil {
		p.logger.Error("task failed", "task", done.ID, "link", done.SourceURL, "kind", domain.KindOf(err), "error", err)
	} else {
		p.logger.Debug("task succeeded", "task", done.ID, "path", done.OutputPath, "bytes", written)
	}

	p.metrics.BytesWritten(written)
	p.metrics.TaskFinished(done.Status, done.FinishedAt.Sub(start))
	p.reporter.TaskFinished(done)
	p.record(ctx, done)
}

// execute runs parse -> resolve -> save for one task.
func (p *Pool) execute(ctx context.Context, task *domain.DownloadTask) (int64, error) {
	fileID, err := drive.ParseFileID(task.SourceURL)
	if err != nil {
		return 0, err
	}
	p.update(task, func(t *domain.DownloadTask) { t.FileID = fileID })

	res, err := p.resolver.Resolve(ctx, fileID)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	dest := download.Destination(p.cfg.DownloadDirectory, res.Metadata)
	p.update(task, func(t *domain.DownloadTask) { t.OutputPath = dest })
	p.reporter.TaskStarted(p.get(task), res.Metadata)

	return p.saver.Save(ctx, res.Body, dest, res.Metadata.ByteSize, func(written, total int64) {
		p.update(task, func(t *domain.DownloadTask) { t.BytesWritten = written })
		p.reporter.TaskProgress(task.ID, written, total)
	})
}

func (p *Pool) update(task *domain.DownloadTask, fn func(*domain.DownloadTask)) {
	p.mu.Lock()
	fn(task)
	p.mu.Unlock()
}

func (p *Pool) get(task *domain.DownloadTask) domain.DownloadTask {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *task
}

type nopReporter struct{}

func (nopReporter) TaskStarted(domain.DownloadTask, domain.FileMetadata) {}
func (nopReporter) TaskProgress(string, int64, int64)                   {}
func (nopReporter) TaskFinished(domain.DownloadTask)                     {}
