package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"boorudl/pkg/booru"
	"boorudl/pkg/logger"
	"boorudl/pkg/metadata"
	"boorudl/pkg/ratelimit"
)

// DownloadJob is one accepted post waiting for its image
type DownloadJob struct {
	Post booru.Post
	Page int
}

// DownloadResult reports how a job ended and the budget count after it
type DownloadResult struct {
	Job      DownloadJob
	Success  bool
	Error    error
	Duration time.Duration
	Size     int64
	// Count is the budget count after this image was committed
	Count int
}

// ImageDownloader streams an image body into w
type ImageDownloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// ImageStorage persists images and their tag files
type ImageStorage interface {
	SaveImage(name string, fill func(w io.Writer) error) error
	SaveTags(name, text string) error
}

// WorkerPool downloads accepted posts with a fixed number of workers
type WorkerPool struct {
	numWorkers     int
	jobQueue       chan DownloadJob
	resultQueue    chan DownloadResult
	wg             sync.WaitGroup
	pending        sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	client         ImageDownloader
	storageManager ImageStorage
	budget         *Budget
	rateLimiter    ratelimit.Limiter
	tagFormat      metadata.Format
	logger         logger.Logger
}

// NewWorkerPool creates a new download worker pool. Every submitted job must
// hold a reservation on budget; the worker commits or releases it.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	client ImageDownloader,
	storageManager ImageStorage,
	budget *Budget,
	rateLimiter ratelimit.Limiter,
	tagFormat metadata.Format,
	log logger.Logger,
) *WorkerPool {
	poolCtx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewThrottle(0)
	}

	return &WorkerPool{
		numWorkers:     numWorkers,
		jobQueue:       make(chan DownloadJob, numWorkers*2),
		resultQueue:    make(chan DownloadResult, numWorkers),
		ctx:            poolCtx,
		cancel:         cancel,
		client:         client,
		storageManager: storageManager,
		budget:         budget,
		rateLimiter:    rateLimiter,
		tagFormat:      tagFormat,
		logger:         log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs and shuts the workers down. Results is closed
// afterwards.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("worker pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job DownloadJob) error {
	wp.pending.Add(1)
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("job submitted to queue", map[string]interface{}{
			"post_id": job.Post.ID,
			"page":    job.Page,
		})
		return nil
	case <-wp.ctx.Done():
		wp.pending.Done()
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Drain blocks until every submitted job has produced its result
func (wp *WorkerPool) Drain() {
	wp.pending.Wait()
}

// Results is closed by Stop once every worker has exited
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

// worker drains the job queue until it is closed
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(job, id)
		wp.resultQueue <- result
		wp.pending.Done()
	}
}

// processJob downloads one image, writes its tag file and settles the
// budget reservation
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	post := job.Post
	result := DownloadResult{Job: job}

	fail := func(err error) DownloadResult {
		wp.budget.Release()
		result.Error = err
		result.Duration = time.Since(start)
		logger.LogDownload(wp.logger, post.ID, post.ImageURL, 0, err)
		return result
	}

	if err := wp.ctx.Err(); err != nil {
		return fail(err)
	}

	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		return fail(err)
	}

	err := wp.storageManager.SaveImage(post.Filename(), func(w io.Writer) error {
		n, err := wp.client.Download(wp.ctx, post.ImageURL, w)
		result.Size = n
		return err
	})
	if err != nil {
		return fail(err)
	}

	text := metadata.FromPost(post).Render(wp.tagFormat)
	if err := wp.storageManager.SaveTags(post.TagFilename(), text); err != nil {
		return fail(fmt.Errorf("save tags: %w", err))
	}

	result.Success = true
	result.Count = wp.budget.Commit()
	result.Duration = time.Since(start)

	logger.LogDownload(wp.logger, post.ID, post.ImageURL, result.Count, nil)
	wp.logger.DebugWithFields("worker completed job", map[string]interface{}{
		"worker_id": workerID,
		"post_id":   post.ID,
		"size":      result.Size,
		"duration":  result.Duration,
	})

	return result
}
