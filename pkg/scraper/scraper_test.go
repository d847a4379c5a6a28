package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"boorudl/pkg/booru"
	"boorudl/pkg/config"
	"boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/ui"
	"boorudl/pkg/ui/tui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBooruServer serves a fixed listing through both API dialects and the
// images it references
type mockBooruServer struct {
	server        *httptest.Server
	posts         []map[string]interface{}
	pageCalls     int32
	downloadCalls int32
	failPage      int
	missing       map[string]bool
	mu            sync.Mutex
	queries       []string
}

func newMockBooruServer(t *testing.T, posts []map[string]interface{}) *mockBooruServer {
	t.Helper()
	m := &mockBooruServer{posts: posts, missing: map[string]bool{}}

	mux := http.NewServeMux()

	mux.HandleFunc("/posts.json", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		m.listing(w, r, page)
	})

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		pid, _ := strconv.Atoi(r.URL.Query().Get("pid"))
		m.listing(w, r, pid+1)
	})

	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.downloadCalls, 1)
		name := strings.TrimPrefix(r.URL.Path, "/img/")
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if m.missing[id] {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "image-%s", id)
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockBooruServer) listing(w http.ResponseWriter, r *http.Request, page int) {
	atomic.AddInt32(&m.pageCalls, 1)

	m.mu.Lock()
	m.queries = append(m.queries, r.URL.RawQuery)
	m.mu.Unlock()

	if m.failPage != 0 && page == m.failPage {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	from := (page - 1) * limit
	to := from + limit
	if from > len(m.posts) {
		from = len(m.posts)
	}
	if to > len(m.posts) {
		to = len(m.posts)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.posts[from:to])
}

func (m *mockBooruServer) URL() string {
	return m.server.URL
}

func (m *mockBooruServer) Downloads() int {
	return int(atomic.LoadInt32(&m.downloadCalls))
}

func (m *mockBooruServer) PageCalls() int {
	return int(atomic.LoadInt32(&m.pageCalls))
}

// widescreenPosts returns n 1920x1080 png posts with ids 1..n
func widescreenPosts(n int) []map[string]interface{} {
	posts := make([]map[string]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		posts = append(posts, map[string]interface{}{
			"id":           i,
			"file_url":     fmt.Sprintf("/img/%d.png", i),
			"image_width":  1920,
			"image_height": 1080,
			"tag_string":   fmt.Sprintf("tag_a tag_b post_%d", i),
			"score":        10,
		})
	}
	return posts
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Source.BaseURL = baseURL
	cfg.Source.APIType = "paginated"
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.RateLimit.RequestsPerSecond = 0
	cfg.Query.PerPage = 2
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config) *Scraper {
	t.Helper()

	dialect, err := booru.ParseDialect(cfg.Source.APIType)
	require.NoError(t, err)

	client, err := booru.NewClient(booru.Options{
		BaseURL: cfg.Source.BaseURL,
		Dialect: dialect,
		Timeout: cfg.Source.Timeout,
	}, logger.NewNopLogger())
	require.NoError(t, err)

	s, err := NewWithClient(cfg, client, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type recordingReporter struct {
	mu         sync.Mutex
	pages      []int
	skipped    []string
	present    []string
	downloaded []string
	failed     []string
}

func (r *recordingReporter) PageStarted(page int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, page)
}

func (r *recordingReporter) Skipped(postID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, postID)
}

func (r *recordingReporter) AlreadyPresent(postID string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.present = append(r.present, postID)
}

func (r *recordingReporter) Downloaded(postID string, size int64, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloaded = append(r.downloaded, postID)
}

func (r *recordingReporter) Failed(postID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, postID)
}

func TestRunStopsAtBudget(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(5))
	cfg := testConfig(t, srv.URL())
	cfg.Output.MaxImages = 2
	cfg.Query.Ratios = []string{"16:9"}

	s := newTestScraper(t, cfg)
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopBudgetReached, result.StopReason)
	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 0, result.AlreadyPresent)
	assert.Equal(t, 1, srv.PageCalls(), "no request after the budget is reached")
	assert.Equal(t, 2, srv.Downloads())

	assert.ElementsMatch(t, []string{"1.png", "2.png"}, listDir(t, result.ImagesDir))
	assert.ElementsMatch(t, []string{"1.txt", "2.txt"}, listDir(t, result.TagsDir))

	data, err := os.ReadFile(filepath.Join(result.TagsDir, "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "tag_a tag_b post_1", string(data))

	img, err := os.ReadFile(filepath.Join(result.ImagesDir, "2.png"))
	require.NoError(t, err)
	assert.Equal(t, "image-2", string(img))
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(5))
	cfg := testConfig(t, srv.URL())
	cfg.Output.MaxImages = 3

	first, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Downloaded)

	second, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, second.Downloaded)
	assert.Equal(t, 3, second.AlreadyPresent)
	assert.Equal(t, StopBudgetReached, second.StopReason)
	assert.Equal(t, 3, srv.Downloads(), "existing images are never fetched again")
	assert.Len(t, listDir(t, second.ImagesDir), 3)
}

func TestRunRestoresMissingTagFile(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(2))
	cfg := testConfig(t, srv.URL())
	cfg.Output.MaxImages = 2

	first, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(first.TagsDir, "1.txt")))

	second, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, second.AlreadyPresent)
	data, err := os.ReadFile(filepath.Join(second.TagsDir, "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "tag_a tag_b post_1", string(data))
}

func TestRunSkipsFailedDownloads(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(5))
	srv.missing["2"] = true
	cfg := testConfig(t, srv.URL())
	cfg.Output.MaxImages = 3

	reporter := &recordingReporter{}
	s := newTestScraper(t, cfg)
	s.SetReporter(reporter)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopBudgetReached, result.StopReason)
	assert.Equal(t, 3, result.Downloaded)
	assert.Equal(t, 1, result.Failed)
	assert.ElementsMatch(t, []string{"1.png", "3.png", "4.png"}, listDir(t, result.ImagesDir))
	assert.ElementsMatch(t, []string{"1.txt", "3.txt", "4.txt"}, listDir(t, result.TagsDir))
	assert.Equal(t, []string{"2"}, reporter.failed)
	assert.Equal(t, []string{"1", "3", "4"}, reporter.downloaded)
}

func TestRunFetchFailureKeepsProgress(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(6))
	srv.failPage = 2
	cfg := testConfig(t, srv.URL())
	cfg.Output.MaxImages = 10

	result, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopFetchFailed, result.StopReason)
	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.Pages)
	assert.True(t, errors.IsKind(result.FetchError, errors.KindFetchFailed))
	assert.Len(t, listDir(t, result.ImagesDir), 2)
}

func TestRunExhaustsListing(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(3))
	cfg := testConfig(t, srv.URL())

	reporter := &recordingReporter{}
	s := newTestScraper(t, cfg)
	s.SetReporter(reporter)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopExhausted, result.StopReason)
	assert.Equal(t, 3, result.Downloaded)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, srv.PageCalls(), "a short page ends pagination")
	assert.Equal(t, []int{1, 2}, reporter.pages)
}

func TestRunAppliesFilters(t *testing.T) {
	posts := []map[string]interface{}{
		{"id": 1, "file_url": "/img/1.png", "image_width": 1920, "image_height": 1080, "tag_string": "wide"},
		{"id": 2, "file_url": "/img/2.webm", "image_width": 1920, "image_height": 1080, "tag_string": "video"},
		{"id": 3, "file_url": "/img/3.jpg", "image_width": 1024, "image_height": 768, "tag_string": "four_three"},
		{"id": 4, "file_url": "/img/4.jpg", "tag_string": "no_dimensions"},
		{"id": 5, "image_width": 1920, "image_height": 1080, "tag_string": "no_url"},
		{"id": 6, "file_url": "/img/6.jpg", "image_width": 1280, "image_height": 720, "tag_string": "small"},
	}
	srv := newMockBooruServer(t, posts)
	cfg := testConfig(t, srv.URL())
	cfg.Query.PerPage = 10
	cfg.Query.Ratios = []string{"16:9"}
	cfg.Query.MinWidth = 1600

	reporter := &recordingReporter{}
	s := newTestScraper(t, cfg)
	s.SetReporter(reporter)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 5, result.Filtered)
	assert.Equal(t, []string{"1.png"}, listDir(t, result.ImagesDir))
	assert.Equal(t, []string{"2", "3", "4", "5", "6"}, reporter.skipped)
}

func TestRunOffsetDialect(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(3))
	cfg := testConfig(t, srv.URL())
	cfg.Source.APIType = "offset"
	cfg.Query.IncludeTags = "landscape"
	cfg.Query.ExcludeTags = "text"

	result, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Downloaded)
	require.Len(t, srv.queries, 2)
	assert.Contains(t, srv.queries[0], "pid=0")
	assert.Contains(t, srv.queries[1], "pid=1")
	assert.Contains(t, srv.queries[0], "tags=landscape+-text")
}

func TestRunConcurrentDownloadsRespectBudget(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(20))
	cfg := testConfig(t, srv.URL())
	cfg.Query.PerPage = 20
	cfg.Output.MaxImages = 3
	cfg.Download.ConcurrentDownloads = 4

	result, err := newTestScraper(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Downloaded)
	assert.Equal(t, StopBudgetReached, result.StopReason)
	assert.Len(t, listDir(t, result.ImagesDir), 3)
	assert.Equal(t, 3, srv.Downloads())
}

func TestRunCancelled(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(3))
	cfg := testConfig(t, srv.URL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestScraper(t, cfg).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StopCancelled, result.StopReason)
	assert.Equal(t, 0, srv.PageCalls())
	assert.Equal(t, 0, result.Total())
}

func TestNewRejectsInvalidRatio(t *testing.T) {
	srv := newMockBooruServer(t, widescreenPosts(1))
	cfg := testConfig(t, srv.URL())
	cfg.Query.Ratios = []string{"16:0"}

	client, err := booru.NewClient(booru.Options{BaseURL: srv.URL(), Dialect: booru.DialectPaginated}, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = NewWithClient(cfg, client, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidRatio))
	assert.Equal(t, 0, srv.PageCalls())
}

func TestPageSizeIsCapped(t *testing.T) {
	srv := newMockBooruServer(t, nil)

	cfg := testConfig(t, srv.URL())
	cfg.Query.PerPage = 500
	assert.Equal(t, booru.MaxPaginatedPageSize, newTestScraper(t, cfg).PageSize())

	cfg.Source.APIType = "offset"
	assert.Equal(t, 500, newTestScraper(t, cfg).PageSize())

	cfg.Query.PerPage = 5000
	assert.Equal(t, booru.MaxOffsetPageSize, newTestScraper(t, cfg).PageSize())
}

func TestTagQuery(t *testing.T) {
	srv := newMockBooruServer(t, nil)
	cfg := testConfig(t, srv.URL())
	cfg.Query.IncludeTags = "scenery  sky"
	cfg.Query.ExcludeTags = "text watermark"

	assert.Equal(t, "scenery sky -text -watermark", newTestScraper(t, cfg).Tags())
}

var (
	_ Reporter = (*ui.ProgressDisplay)(nil)
	_ Reporter = (*tui.Dashboard)(nil)
)
