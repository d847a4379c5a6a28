package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a single redrawn progress line for a run, or one
// line per event in verbose mode
type ProgressDisplay struct {
	mu              sync.Mutex
	label           string
	maxImages       int
	count           int
	downloadedCount int
	presentCount    int
	skipped         int
	currentPost     string
	page            int
	startTime       time.Time
	bytesDownloaded int64
	errors          int
	isDebug         bool
}

// NewProgressDisplay creates a new progress display
func NewProgressDisplay(label string, maxImages int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		label:     label,
		maxImages: maxImages,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// PageStarted indicates a new listing page is being requested
func (p *ProgressDisplay) PageStarted(page int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = page
	if p.isDebug {
		p.line("\n%s Scanning page %d...\n", Magenta("→"), page)
	}
}

// Skipped reports a post rejected by the filters
func (p *ProgressDisplay) Skipped(postID, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
	if p.isDebug {
		p.line("%s %s: %s\n", Dim("[SKIP]"), postID, reason)
	}
}

// AlreadyPresent reports a post whose image is already on disk
func (p *ProgressDisplay) AlreadyPresent(postID string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.presentCount++
	p.count = count
	if p.isDebug {
		p.line("%s %s already present (%d/%d)\n", Yellow("[SKIP]"), postID, count, p.maxImages)
	} else {
		p.printProgress()
	}
}

// Downloaded marks a download as complete
func (p *ProgressDisplay) Downloaded(postID string, size int64, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloadedCount++
	p.count = count
	p.bytesDownloaded += size
	p.currentPost = postID

	if p.isDebug {
		p.line("%s %s • %s (%d/%d)\n", Green("✓"), postID, FormatBytes(size), count, p.maxImages)
	} else {
		p.printProgress()
	}
}

// Failed marks a download as failed
func (p *ProgressDisplay) Failed(postID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors++
	if p.isDebug {
		p.line("%s Failed: %s - %v\n", Red("✗"), postID, err)
	} else {
		p.printProgress()
	}
}

// Finish ends the progress line
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isDebug && p.count+p.errors > 0 {
		p.line("\n")
	}
}

func (p *ProgressDisplay) line(format string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	printf(format, args...)
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed.Minutes() > 0 {
		rate = float64(p.downloadedCount) / elapsed.Minutes()
	}

	progress := 0.0
	if p.maxImages > 0 {
		progress = float64(p.count) / float64(p.maxImages)
	}
	if progress > 1 {
		progress = 1
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • page %d • %.1f/min • %s",
		Cyan(p.label),
		bar,
		p.count,
		p.maxImages,
		p.page,
		rate,
		FormatBytes(p.bytesDownloaded),
	)

	if p.currentPost != "" {
		line += fmt.Sprintf(" • %s", p.currentPost)
	}
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}

	p.line("\r%s\r%s", strings.Repeat(" ", 120), line)
}

// FormatDuration renders d as 42s, 3m5s or 2h5m
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes renders a byte count with binary units, e.g. 1.5 KB
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
