// Package paginator walks a booru listing page by page until the results
// run out, a request fails, or the caller stops it.
package paginator

import (
	"context"

	"boorudl/pkg/booru"
	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/ratelimit"
)

// State of the pagination cycle.
type State int

const (
	Requesting State = iota
	Normalizing
	Done
)

func (s State) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Normalizing:
		return "normalizing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Source fetches raw records and normalizes them. *booru.Client implements it.
type Source interface {
	FetchPage(ctx context.Context, tags string, page, limit int) ([]booru.Record, error)
	Normalize(rec booru.Record) booru.Post
}

// Page is one yielded page of normalized posts.
type Page struct {
	// Number is the logical 1-based page index.
	Number int
	Posts  []booru.Post
	// Last is set when the page was short and no further request will follow.
	Last bool
}

// Paginator is the Requesting -> Normalizing -> Done state machine.
type Paginator struct {
	source   Source
	limiter  ratelimit.Limiter
	tags     string
	pageSize int
	logger   logger.Logger

	state State
	page  int
	cause error
}

// New creates a paginator starting at logical page 1.
func New(source Source, limiter ratelimit.Limiter, tags string, pageSize int, log logger.Logger) *Paginator {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.NewFixedDelay(0)
	}
	return &Paginator{
		source:   source,
		limiter:  limiter,
		tags:     tags,
		pageSize: pageSize,
		logger:   log,
		state:    Requesting,
		page:     1,
	}
}

// Next waits on the rate limiter, fetches and normalizes the next page.
// It returns false once pagination is done; Err and Exhausted tell why.
func (p *Paginator) Next(ctx context.Context) (*Page, bool) {
	if p.state == Done {
		return nil, false
	}

	if err := p.limiter.Wait(ctx); err != nil {
		p.finish(err)
		return nil, false
	}

	records, err := p.source.FetchPage(ctx, p.tags, p.page, p.pageSize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.finish(ctxErr)
			return nil, false
		}
		p.logger.WarnWithFields("failed to fetch page, stopping", map[string]interface{}{
			"page":  p.page,
			"error": err.Error(),
		})
		p.finish(err)
		return nil, false
	}

	p.state = Normalizing
	if len(records) == 0 {
		p.logger.InfoWithFields("no more posts, stopping", map[string]interface{}{
			"page": p.page,
		})
		p.finish(errs.ErrNoMorePosts)
		return nil, false
	}

	page := &Page{
		Number: p.page,
		Posts:  make([]booru.Post, 0, len(records)),
	}
	for _, rec := range records {
		page.Posts = append(page.Posts, p.source.Normalize(rec))
	}

	if len(records) < p.pageSize {
		page.Last = true
		p.logger.DebugWithFields("short page, last one", map[string]interface{}{
			"page":    p.page,
			"records": len(records),
			"limit":   p.pageSize,
		})
		p.finish(errs.ErrNoMorePosts)
		return page, true
	}

	p.page++
	p.state = Requesting
	return page, true
}

// Stop ends pagination; the next call to Next returns false.
func (p *Paginator) Stop() {
	p.state = Done
}

func (p *Paginator) finish(cause error) {
	p.state = Done
	p.cause = cause
}

// State returns the current state.
func (p *Paginator) State() State {
	return p.state
}

// Page returns the logical index of the page that will be requested next,
// or of the last page requested once done.
func (p *Paginator) Page() int {
	return p.page
}

// Exhausted reports whether the listing ran out of results.
func (p *Paginator) Exhausted() bool {
	return errs.IsKind(p.cause, errs.KindNoMorePosts)
}

// Err returns the fetch or cancellation error that ended pagination.
// Normal exhaustion and Stop leave it nil.
func (p *Paginator) Err() error {
	if p.Exhausted() {
		return nil
	}
	return p.cause
}
