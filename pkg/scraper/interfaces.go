package scraper

import (
	"boorudl/internal/downloader"
	"boorudl/pkg/booru"
	"boorudl/pkg/paginator"
)

// BooruClient defines the booru API operations a run needs
type BooruClient interface {
	paginator.Source
	downloader.ImageDownloader
	Dialect() booru.Dialect
}

// Reporter receives per-post progress events. ui.ProgressDisplay and
// tui.Dashboard implement it. Downloaded and Failed are called from the
// result collector goroutine, the others from the page loop.
type Reporter interface {
	PageStarted(page int)
	Skipped(postID, reason string)
	AlreadyPresent(postID string, count int)
	Downloaded(postID string, size int64, count int)
	Failed(postID string, err error)
}

type nopReporter struct{}

func (nopReporter) PageStarted(int)               {}
func (nopReporter) Skipped(string, string)        {}
func (nopReporter) AlreadyPresent(string, int)    {}
func (nopReporter) Downloaded(string, int64, int) {}
func (nopReporter) Failed(string, error)          {}
