package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boorudl/internal/downloader"
	"boorudl/pkg/booru"
	"boorudl/pkg/config"
	"boorudl/pkg/filter"
	"boorudl/pkg/logger"
	"boorudl/pkg/metadata"
	"boorudl/pkg/paginator"
	"boorudl/pkg/ratelimit"
	"boorudl/pkg/storage"
)

// StopReason says why a run ended
type StopReason string

const (
	StopBudgetReached StopReason = "budget_reached"
	StopExhausted     StopReason = "exhausted"
	StopFetchFailed   StopReason = "fetch_failed"
	StopCancelled     StopReason = "cancelled"
)

// Result summarizes a run
type Result struct {
	Downloaded     int
	AlreadyPresent int
	Failed         int
	Filtered       int
	Pages          int
	BytesWritten   int64
	MaxImages      int
	StopReason     StopReason
	// FetchError is the page request error when StopReason is fetch_failed
	FetchError error
	ImagesDir  string
	TagsDir    string
	Elapsed    time.Duration
}

// Total returns the number of images counted toward the budget
func (r *Result) Total() int {
	return r.Downloaded + r.AlreadyPresent
}

// Scraper orchestrates one download session
type Scraper struct {
	client          BooruClient
	chain           *filter.Chain
	pageLimiter     ratelimit.Limiter
	downloadLimiter ratelimit.Limiter
	config          *config.Config
	tags            string
	pageSize        int
	tagFormat       metadata.Format
	reporter        Reporter
	logger          logger.Logger
}

// New creates a Scraper talking to the site configured in cfg
func New(cfg *config.Config) (*Scraper, error) {
	log := logger.GetLogger()

	dialect, err := booru.ParseDialect(cfg.Source.APIType)
	if err != nil {
		return nil, err
	}

	client, err := booru.NewClient(booru.Options{
		BaseURL:   cfg.Source.BaseURL,
		Dialect:   dialect,
		Username:  cfg.Source.Username,
		APIKey:    cfg.Source.APIKey,
		UserAgent: cfg.Source.UserAgent,
		Proxy:     cfg.Source.Proxy,
		Timeout:   cfg.Source.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return NewWithClient(cfg, client, log)
}

// NewWithClient creates a Scraper around an existing client. Ratio
// expressions are parsed here, so an invalid ratio fails before any request.
func NewWithClient(cfg *config.Config, client BooruClient, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	ratios, err := cfg.ParsedRatios()
	if err != nil {
		return nil, err
	}

	tagFormat, err := metadata.ParseFormat(cfg.Output.TagFormat)
	if err != nil {
		return nil, err
	}

	pageSize := client.Dialect().ClampPageSize(cfg.Query.PerPage)
	if pageSize != cfg.Query.PerPage {
		log.WarnWithFields("page size adjusted to the site limit", map[string]interface{}{
			"requested": cfg.Query.PerPage,
			"used":      pageSize,
			"dialect":   client.Dialect().String(),
		})
	}

	var downloadLimiter ratelimit.Limiter
	if cfg.Download.MaxPerSecond > 0 {
		downloadLimiter = ratelimit.NewThrottle(cfg.Download.MaxPerSecond)
	}

	return &Scraper{
		client: client,
		chain: filter.New(filter.Options{
			Ratios:    ratios,
			MinWidth:  cfg.Query.MinWidth,
			MinHeight: cfg.Query.MinHeight,
			MinScore:  cfg.Query.MinScore,
		}),
		pageLimiter:     ratelimit.NewFixedDelay(cfg.RateLimit.RequestsPerSecond),
		downloadLimiter: downloadLimiter,
		config:          cfg,
		tags:            booru.BuildTagQuery(cfg.Query.IncludeTags, cfg.Query.ExcludeTags),
		pageSize:        pageSize,
		tagFormat:       tagFormat,
		reporter:        nopReporter{},
		logger:          log,
	}, nil
}

// SetReporter sets the progress receiver for the run
func (s *Scraper) SetReporter(r Reporter) {
	if r == nil {
		r = nopReporter{}
	}
	s.reporter = r
}

// Tags returns the tag query sent upstream
func (s *Scraper) Tags() string {
	return s.tags
}

// PageSize returns the page size after the dialect cap
func (s *Scraper) PageSize() int {
	return s.pageSize
}

// Run downloads until the budget is reached, the listing runs out, a page
// request fails, or ctx is cancelled. The returned error is reserved for
// setup failures; every other ending is described by Result.StopReason.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	storageManager, err := storage.NewManager(s.config.Output.BaseDirectory)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create storage manager")
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	result := &Result{
		MaxImages: s.config.Output.MaxImages,
		ImagesDir: storageManager.ImagesDir(),
		TagsDir:   storageManager.TagsDir(),
	}

	logger.LogComponentStart(s.logger, "scraper", map[string]interface{}{
		"dialect":    s.client.Dialect().String(),
		"tags":       s.tags,
		"page_size":  s.pageSize,
		"max_images": s.config.Output.MaxImages,
		"output_dir": storageManager.GetOutputDir(),
		"workers":    s.config.Download.ConcurrentDownloads,
	})

	budget := downloader.NewBudget(s.config.Output.MaxImages)
	workerPool := downloader.NewWorkerPool(
		ctx,
		s.config.Download.ConcurrentDownloads,
		s.client,
		storageManager,
		budget,
		s.downloadLimiter,
		s.tagFormat,
		s.logger,
	)
	workerPool.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processDownloadResults(workerPool.Results(), result)
	}()

	pager := paginator.New(s.client, s.pageLimiter, s.tags, s.pageSize, s.logger)

	for ctx.Err() == nil {
		if budget.Reached() {
			pager.Stop()
			break
		}
		if pager.State() == paginator.Done {
			break
		}

		s.reporter.PageStarted(pager.Page())
		page, ok := pager.Next(ctx)
		if !ok {
			break
		}
		result.Pages++

		accepted := s.processPage(ctx, page, pager, budget, storageManager, workerPool, result)

		// the next request waits for this page's downloads
		workerPool.Drain()
		logger.LogPage(s.logger, page.Number, len(page.Posts), accepted)
	}

	workerPool.Stop()
	wg.Wait()

	switch {
	case budget.Reached():
		result.StopReason = StopBudgetReached
	case ctx.Err() != nil:
		result.StopReason = StopCancelled
	case pager.Err() != nil:
		result.StopReason = StopFetchFailed
		result.FetchError = pager.Err()
	default:
		result.StopReason = StopExhausted
	}
	result.Elapsed = time.Since(start)

	logger.LogSummary(s.logger, map[string]interface{}{
		"downloaded":      result.Downloaded,
		"already_present": result.AlreadyPresent,
		"failed":          result.Failed,
		"filtered":        result.Filtered,
		"pages":           result.Pages,
		"stop_reason":     string(result.StopReason),
		"images_dir":      result.ImagesDir,
		"tags_dir":        result.TagsDir,
	})

	return result, nil
}

// processPage filters the posts of one page in order and hands the accepted
// ones to the pool. It returns the number of accepted posts.
func (s *Scraper) processPage(
	ctx context.Context,
	page *paginator.Page,
	pager *paginator.Paginator,
	budget *downloader.Budget,
	storageManager *storage.Manager,
	workerPool *downloader.WorkerPool,
	result *Result,
) int {
	accepted := 0

	for _, post := range page.Posts {
		if ctx.Err() != nil {
			return accepted
		}
		if budget.Reached() {
			pager.Stop()
			return accepted
		}

		decision := s.chain.Evaluate(post)
		if !decision.Accepted {
			result.Filtered++
			logger.LogSkip(s.logger, post.ID, string(decision.Reason), decision.Detail)
			s.reporter.Skipped(post.ID, decision.Detail)
			continue
		}
		accepted++

		if post.SyntheticID {
			s.logger.DebugWithFields("post has no id, using url hash", map[string]interface{}{
				"post_id": post.ID,
				"url":     post.ImageURL,
			})
		}

		if !budget.Reserve() {
			pager.Stop()
			return accepted
		}

		if storageManager.ImageExists(post.Filename()) {
			s.repairTags(storageManager, post)
			count := budget.Commit()
			result.AlreadyPresent++
			logger.LogSkip(s.logger, post.ID, "already_present", storageManager.ImagePath(post.Filename()))
			s.reporter.AlreadyPresent(post.ID, count)
			continue
		}

		err := workerPool.Submit(downloader.DownloadJob{Post: post, Page: page.Number})
		if err != nil {
			budget.Release()
			s.logger.WithError(err).WithField("post_id", post.ID).Error("Failed to submit download job")
			return accepted
		}
	}

	return accepted
}

// repairTags writes the tag file of an image already on disk when it is
// missing
func (s *Scraper) repairTags(storageManager *storage.Manager, post booru.Post) {
	if storageManager.TagsExist(post.TagFilename()) {
		return
	}

	text := metadata.FromPost(post).Render(s.tagFormat)
	if err := storageManager.SaveTags(post.TagFilename(), text); err != nil {
		s.logger.WithError(err).WithField("post_id", post.ID).Warn("Failed to restore missing tag file")
		return
	}
	s.logger.DebugWithFields("restored missing tag file", map[string]interface{}{
		"post_id": post.ID,
	})
}

// processDownloadResults processes results from the worker pool
func (s *Scraper) processDownloadResults(results <-chan downloader.DownloadResult, result *Result) {
	for r := range results {
		if r.Success {
			result.Downloaded++
			result.BytesWritten += r.Size
			s.reporter.Downloaded(r.Job.Post.ID, r.Size, r.Count)
		} else {
			result.Failed++
			s.reporter.Failed(r.Job.Post.ID, r.Error)
		}
	}
}
