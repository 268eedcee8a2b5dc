package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/fixprice-scraper/internal/fetcher"
	"github.com/maltedev/fixprice-scraper/internal/parser"
	"github.com/maltedev/fixprice-scraper/internal/queue"
	"github.com/maltedev/fixprice-scraper/internal/ratelimit"
	"github.com/maltedev/fixprice-scraper/internal/sink"
	"github.com/maltedev/fixprice-scraper/internal/storage"
)

const (
	requeuePriority = -1
	listingPriority = 0
	detailPriority  = 1
)

type Options struct {
	CatalogURLs   []string
	MaxPages      int
	Workers       int
	RenderDetails bool
	WaitSelector  string
	// MaxRequeues is how many times a page whose fetch failed transiently
	// goes back to the end of the queue.
	MaxRequeues   int
}

// Stats summarises one crawl.
type Stats struct {
	Pages    int64 `json:"pages"`
	Links    int64 `json:"links"`
	Records  int64 `json:"records"`
	Failures int64 `json:"failures"`
	Skipped  int64 `json:"skipped"`
	Requeued int64 `json:"requeued"`
	Resumed  int64 `json:"resumed"`
}

type outcome interface {
	RecordSuccess()
	RecordError()
}

type Crawler struct {
	fetcher fetcher.Fetcher
	parser  parser.Parser
	sink    sink.Sink
	limiter ratelimit.RateLimiter
	links   *storage.LinkStorage
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func New(f fetcher.Fetcher, p parser.Parser, s sink.Sink, limiter ratelimit.RateLimiter, links *storage.LinkStorage, opts Options, logger *slog.Logger) *Crawler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		fetcher: f,
		parser:  p,
		sink:    s,
		limiter: limiter,
		links:   links,
		opts:    opts,
		logger:  logger.With("component", "crawler"),
		now:     time.Now,
	}
}

type run struct {
	*Crawler
	queue    queue.Queue
	listings *storage.LinkStorage
	details  *storage.LinkStorage
	pending  int64
	stats    Stats
}

// Run crawls every catalog URL until its listing chain ends. Per page
// failures are logged and counted; only ctx cancellation aborts the crawl.
func (c *Crawler) Run(ctx context.Context) (*Stats, error) {
	listings, _ := storage.NewLinkStorage("")
	details := c.links
	if details == nil {
		details, _ = storage.NewLinkStorage("")
	}

	r := &run{
		Crawler:  c,
		queue:    queue.NewInMemoryQueue(),
		listings: listings,
		details:  details,
	}

	if n := r.resume(); n > 0 {
		c.logger.Info("resuming unfinished links", "links", n)
	}

	for _, catalogURL := range c.opts.CatalogURLs {
		start := catalogURL
		page, err := parser.PageNumber(catalogURL)
		if err != nil {
			start = parser.PageURL(catalogURL, 1)
			page = 1
		}
		r.pushListing(catalogURL, start, page)
	}
	if atomic.LoadInt64(&r.pending) == 0 {
		r.queue.Close()
	}

	c.logger.Info("crawl started", "catalogs", len(c.opts.CatalogURLs), "workers", c.opts.Workers)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.opts.Workers; i++ {
		g.Go(func() error {
			return r.work(gctx)
		})
	}
	err := g.Wait()
	r.queue.Close()

	stats := r.snapshot()
	c.logger.Info("crawl finished",
		"duration", time.Since(started),
		"pages", stats.Pages,
		"records", stats.Records,
		"failures", stats.Failures,
		"requeued", stats.Requeued)

	return stats, err
}

func (r *run) work(ctx context.Context) error {
	for {
		task, err := r.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				return nil
			}
			return err
		}

		switch task.Kind {
		case queue.TaskListing:
			r.handleListing(ctx, task)
		case queue.TaskDetail:
			r.handleDetail(ctx, task)
		}
		r.done()

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (r *run) pushListing(catalogURL, pageURL string, page int) {
	ok, err := r.listings.Claim(pageURL, catalogURL)
	if err != nil || !ok {
		return
	}
	r.push(&queue.Task{
		Kind:       queue.TaskListing,
		URL:        pageURL,
		CatalogURL: catalogURL,
		Page:       page,
		Priority:   listingPriority,
	})
}

// resume queues the detail links an earlier run claimed but never
// completed. Only a persisted link store carries any.
func (r *run) resume() int {
	var tasks []*queue.Task
	for _, link := range r.details.GetPending() {
		ok, err := r.details.Claim(link.URL, link.Source)
		if err != nil || !ok {
			continue
		}
		tasks = append(tasks, &queue.Task{
			Kind:       queue.TaskDetail,
			URL:        link.URL,
			CatalogURL: link.Source,
			Priority:   detailPriority,
		})
	}
	atomic.AddInt64(&r.stats.Resumed, int64(len(tasks)))
	r.pushBatch(tasks)
	return len(tasks)
}

func (r *run) push(task *queue.Task) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	atomic.AddInt64(&r.pending, 1)
	if err := r.queue.Push(task); err != nil {
		r.done()
		r.logger.Error("failed to enqueue task", "url", task.URL, "error", err)
	}
}

func (r *run) pushBatch(tasks []*queue.Task) {
	if len(tasks) == 0 {
		return
	}
	for _, task := range tasks {
		task.ID = uuid.New().String()
	}
	atomic.AddInt64(&r.pending, int64(len(tasks)))
	if err := r.queue.PushBatch(tasks); err != nil {
		if atomic.AddInt64(&r.pending, -int64(len(tasks))) == 0 {
			r.queue.Close()
		}
		r.logger.Error("failed to enqueue tasks", "tasks", len(tasks), "error", err)
	}
}

// requeue sends a transiently failed task to the back of the queue. It
// reports false once the task has used up its requeues.
func (r *run) requeue(ctx context.Context, task *queue.Task, err error) bool {
	if ctx.Err() != nil || task.Retries >= r.opts.MaxRequeues || !fetcher.IsRetryable(err) {
		return false
	}
	task.Retries++
	task.Priority = requeuePriority
	atomic.AddInt64(&r.stats.Requeued, 1)
	r.logger.Warn("page requeued", "kind", task.Kind, "url", task.URL, "retries", task.Retries, "error", err)
	r.push(task)
	return true
}

// done retires one task. The queue closes once nothing is queued or in
// flight, which lets idle workers return.
func (r *run) done() {
	if atomic.AddInt64(&r.pending, -1) == 0 {
		r.queue.Close()
	}
}

func (r *run) handleListing(ctx context.Context, task *queue.Task) {
	page, err := r.fetch(ctx, fetcher.Request{URL: task.URL})
	if err != nil {
		if !r.requeue(ctx, task, err) {
			r.fail(ctx, task, err)
		}
		return
	}
	atomic.AddInt64(&r.stats.Pages, 1)

	listing, err := r.parser.ParseListing(page.Document, page.URL)
	if listing == nil {
		r.fail(ctx, task, err)
		return
	}
	if err != nil {
		atomic.AddInt64(&r.stats.Failures, 1)
		r.logger.Warn("pagination skipped", "url", page.URL, "error", err)
	}

	r.logger.Info("listing parsed", "url", page.URL, "page", task.Page, "links", len(listing.Links))

	var details []*queue.Task
	for _, link := range listing.Links {
		atomic.AddInt64(&r.stats.Links, 1)
		ok, err := r.details.Claim(link, page.URL)
		if err != nil {
			r.logger.Error("failed to record link", "url", link, "error", err)
			continue
		}
		if !ok {
			atomic.AddInt64(&r.stats.Skipped, 1)
			continue
		}
		details = append(details, &queue.Task{
			Kind:       queue.TaskDetail,
			URL:        link,
			CatalogURL: task.CatalogURL,
			Page:       task.Page,
			Priority:   detailPriority,
		})
	}
	r.pushBatch(details)

	if listing.NextPage == "" {
		return
	}
	if r.opts.MaxPages > 0 && task.Page >= r.opts.MaxPages {
		r.logger.Info("max pages reached", "catalog", task.CatalogURL, "page", task.Page)
		return
	}
	r.pushListing(task.CatalogURL, listing.NextPage, task.Page+1)
}

func (r *run) handleDetail(ctx context.Context, task *queue.Task) {
	page, err := r.fetch(ctx, fetcher.Request{
		URL:          task.URL,
		Render:       r.opts.RenderDetails,
		WaitSelector: r.opts.WaitSelector,
	})
	if err != nil {
		if !r.requeue(ctx, task, err) {
			r.fail(ctx, task, err)
		}
		return
	}
	atomic.AddInt64(&r.stats.Pages, 1)

	record, err := r.parser.ParseDetail(page.Document, page.URL, r.now())
	if err != nil {
		r.fail(ctx, task, err)
		return
	}

	if problems := record.Validate(); len(problems) > 0 {
		r.fail(ctx, task, fmt.Errorf("invalid record: %v", problems))
		return
	}

	if err := r.sink.Emit(ctx, record); err != nil {
		r.fail(ctx, task, err)
		return
	}

	atomic.AddInt64(&r.stats.Records, 1)
	if err := r.details.UpdateStatus(task.URL, storage.StatusCompleted, ""); err != nil {
		r.logger.Error("failed to update link status", "url", task.URL, "error", err)
	}
	r.logger.Debug("record emitted", "url", record.URL, "rpc", record.RPC)
}

func (r *run) fetch(ctx context.Context, req fetcher.Request) (*fetcher.Page, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	page, err := r.fetcher.Fetch(ctx, req)
	if o, ok := r.limiter.(outcome); ok {
		if err != nil {
			o.RecordError()
		} else {
			o.RecordSuccess()
		}
	}
	return page, err
}

func (r *run) fail(ctx context.Context, task *queue.Task, err error) {
	if ctx.Err() != nil {
		return
	}
	atomic.AddInt64(&r.stats.Failures, 1)
	r.logger.Error("page failed", "kind", task.Kind, "url", task.URL, "error", err)

	store := r.details
	if task.Kind == queue.TaskListing {
		store = r.listings
	}
	if uerr := store.UpdateStatus(task.URL, storage.StatusFailed, err.Error()); uerr != nil {
		r.logger.Error("failed to update link status", "url", task.URL, "error", uerr)
	}
}

func (r *run) snapshot() *Stats {
	return &Stats{
		Pages:    atomic.LoadInt64(&r.stats.Pages),
		Links:    atomic.LoadInt64(&r.stats.Links),
		Records:  atomic.LoadInt64(&r.stats.Records),
		Failures: atomic.LoadInt64(&r.stats.Failures),
		Skipped:  atomic.LoadInt64(&r.stats.Skipped),
		Requeued: atomic.LoadInt64(&r.stats.Requeued),
		Resumed:  atomic.LoadInt64(&r.stats.Resumed),
	}
}
