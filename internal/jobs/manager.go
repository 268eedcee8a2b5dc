package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/fixprice-scraper/internal/crawler"
	"github.com/maltedev/fixprice-scraper/internal/models"
	"github.com/maltedev/fixprice-scraper/internal/sink"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// Request describes the catalogs a crawl job covers.
type Request struct {
	CatalogURLs []string `json:"catalog_urls"`
	MaxPages    int      `json:"max_pages"`
}

// RunFunc performs one crawl, emitting records to out.
type RunFunc func(ctx context.Context, req Request, out sink.Sink) (*crawler.Stats, error)

// Job represents a crawl job
type Job struct {
	ID          string         `json:"id"`
	CatalogURLs []string       `json:"catalog_urls"`
	MaxPages    int            `json:"max_pages"`
	Status      string         `json:"status"`
	Stats       *crawler.Stats `json:"stats,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Stats represents job statistics
type Stats struct {
	TotalJobs     int `json:"total_jobs"`
	PendingJobs   int `json:"pending_jobs"`
	RunningJobs   int `json:"running_jobs"`
	CompletedJobs int `json:"completed_jobs"`
	FailedJobs    int `json:"failed_jobs"`
	TotalRecords  int `json:"total_records"`
}

type entry struct {
	job     Job
	records *sink.MemorySink
}

type Manager struct {
	mu     sync.RWMutex
	jobs   map[string]*entry
	order  []string
	run    RunFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewManager(run RunFunc, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:   make(map[string]*entry),
		run:    run,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "job_manager"),
	}
}

// CreateJob registers a crawl job and starts it in the background.
func (m *Manager) CreateJob(req Request) (*Job, error) {
	if len(req.CatalogURLs) == 0 {
		return nil, fmt.Errorf("at least one catalog URL is required")
	}
	if req.MaxPages < 0 {
		return nil, fmt.Errorf("max_pages cannot be negative")
	}

	e := &entry{
		job: Job{
			ID:          uuid.New().String(),
			CatalogURLs: req.CatalogURLs,
			MaxPages:    req.MaxPages,
			Status:      StatusPending,
			CreatedAt:   time.Now(),
		},
		records: sink.NewMemorySink(),
	}

	job := e.job

	m.mu.Lock()
	m.jobs[job.ID] = e
	m.order = append(m.order, job.ID)
	m.mu.Unlock()

	m.logger.Info("job created", "id", job.ID, "catalogs", len(req.CatalogURLs))

	m.wg.Add(1)
	go m.execute(e, req)

	return &job, nil
}

func (m *Manager) execute(e *entry, req Request) {
	defer m.wg.Done()

	logger := m.logger.With("job_id", e.job.ID)

	m.update(e, func(j *Job) {
		now := time.Now()
		j.Status = StatusRunning
		j.StartedAt = &now
	})

	stats, err := m.run(m.ctx, req, e.records)

	m.update(e, func(j *Job) {
		now := time.Now()
		j.CompletedAt = &now
		j.Stats = stats
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
	})

	if err != nil {
		logger.Error("job failed", "error", err)
		return
	}
	logger.Info("job completed", "records", len(e.records.Records()))
}

func (m *Manager) update(e *entry, fn func(j *Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&e.job)
}

// GetJob retrieves a job by ID
func (m *Manager) GetJob(jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	job := e.job
	return &job, nil
}

// ListJobs returns jobs newest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		job := m.jobs[m.order[i]].job
		jobs = append(jobs, &job)
	}
	return jobs
}

func (m *Manager) GetJobRecords(jobID string) ([]*models.ProductRecord, error) {
	m.mu.RLock()
	e, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return e.records.Records(), nil
}

func (m *Manager) GetStats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{TotalJobs: len(m.jobs)}
	for _, e := range m.jobs {
		switch e.job.Status {
		case StatusPending:
			stats.PendingJobs++
		case StatusRunning:
			stats.RunningJobs++
		case StatusCompleted:
			stats.CompletedJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
		stats.TotalRecords += len(e.records.Records())
	}
	return stats
}

// Shutdown cancels running jobs and waits for them until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
