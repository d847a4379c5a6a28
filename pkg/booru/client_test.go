package booru

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server, dialect Dialect, username, apiKey string) *Client {
	t.Helper()
	client, err := NewClient(Options{
		BaseURL:  server.URL,
		Dialect:  dialect,
		Username: username,
		APIKey:   apiKey,
		Timeout:  5 * time.Second,
	}, logger.NewTestLogger())
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://danbooru.donmai.us"}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, DialectPaginated, client.Dialect())
	assert.Equal(t, DefaultUserAgent, client.headers["User-Agent"])
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Zero(t, client.httpClient.Timeout, "body reads are bounded per gap, not in total")
	transport, ok := client.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultTimeout, transport.ResponseHeaderTimeout)

	_, err = NewClient(Options{}, logger.NewTestLogger())
	assert.Error(t, err)

	_, err = NewClient(Options{BaseURL: "not a url"}, logger.NewTestLogger())
	assert.Error(t, err)
}

func TestParseProxy(t *testing.T) {
	for _, raw := range []string{"http://127.0.0.1:7890", "https://proxy.local:443", "socks5://127.0.0.1:1080"} {
		u, err := ParseProxy(raw)
		require.NoError(t, err, raw)
		assert.NotEmpty(t, u.Host)
	}

	_, err := ParseProxy("ftp://127.0.0.1:21")
	assert.Error(t, err)
	_, err = ParseProxy("socks5://")
	assert.Error(t, err)
}

func TestFetchPagePaginated(t *testing.T) {
	var gotUA, gotUser, gotPass string
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts.json", r.URL.Path)
		gotUA = r.Header.Get("User-Agent")
		gotUser, gotPass, _ = r.BasicAuth()
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"file_url":"/data/1.png"},{"id":2,"file_url":"/data/2.jpg"}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server, DialectPaginated, "alice", "key")
	records, err := client.FetchPage(context.Background(), "touhou", 1, 100)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "key", gotPass)
	assert.Equal(t, "tags=touhou&page=1&limit=100", gotQuery)

	post := client.Normalize(records[0])
	assert.Equal(t, server.URL+"/data/1.png", post.ImageURL)
}

func TestFetchPageOffset(t *testing.T) {
	var gotQuery string
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index.php", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _, hadAuth = r.BasicAuth()
		w.Write([]byte(`{"@attributes":{"count":1},"post":[{"id":9,"file_url":"https://img/9.jpg"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, DialectOffset, "42", "k")
	records, err := client.FetchPage(context.Background(), "cat", 2, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.False(t, hadAuth)
	assert.Equal(t, "page=dapi&s=post&q=index&json=1&tags=cat&pid=1&limit=10&api_key=k&user_id=42", gotQuery)
}

func TestFetchPageFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   int
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: "down", code: 503},
		{name: "forbidden", status: http.StatusForbidden, body: `{"success":false}`, code: 403},
		{name: "malformed body", status: http.StatusOK, body: "<html>", code: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server, DialectOffset, "", "")
			_, err := client.FetchPage(context.Background(), "", 1, 100)
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindFetchFailed))

			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestFetchPageTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, server, DialectOffset, "", "")
	server.Close()

	_, err := client.FetchPage(context.Background(), "", 1, 100)
	assert.True(t, errs.IsKind(err, errs.KindFetchFailed))
}

func TestDownload(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 3000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server, DialectOffset, "", "")

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), server.URL+"/ok.png", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())

	buf.Reset()
	_, err = client.Download(context.Background(), server.URL+"/missing.png", &buf)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindDownloadFailed))
	assert.True(t, strings.Contains(err.Error(), "404"))
	assert.Zero(t, buf.Len())
}

type chunkRecorder struct {
	writes []int
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.writes = append(c.writes, len(p))
	return len(p), nil
}

func TestDownloadChunked(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*ChunkSize)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	client := newTestClient(t, server, DialectOffset, "", "")
	rec := &chunkRecorder{}
	_, err := client.Download(context.Background(), server.URL+"/a.jpg", rec)
	require.NoError(t, err)
	for _, size := range rec.writes {
		assert.LessOrEqual(t, size, ChunkSize)
	}
}

func newTimeoutClient(t *testing.T, server *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Options{
		BaseURL: server.URL,
		Dialect: DialectOffset,
		Timeout: timeout,
	}, logger.NewTestLogger())
	require.NoError(t, err)
	return client
}

func TestDownloadSlowButSteady(t *testing.T) {
	chunk := bytes.Repeat([]byte("z"), 512)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 6; i++ {
			w.Write(chunk)
			flusher.Flush()
			time.Sleep(60 * time.Millisecond)
		}
	}))
	defer server.Close()

	// total transfer time is well above the timeout, every gap is below it
	client := newTimeoutClient(t, server, 250*time.Millisecond)

	var buf bytes.Buffer
	start := time.Now()
	n, err := client.Download(context.Background(), server.URL+"/big.png", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(6*len(chunk)), n)
	assert.Greater(t, time.Since(start), 250*time.Millisecond)
}

func TestDownloadStalled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := newTimeoutClient(t, server, 100*time.Millisecond)

	var buf bytes.Buffer
	_, err := client.Download(context.Background(), server.URL+"/stuck.png", &buf)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindDownloadFailed))
	assert.ErrorIs(t, err, ErrStalled)
}

func TestFetchPageHeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := newTimeoutClient(t, server, 100*time.Millisecond)

	start := time.Now()
	_, err := client.FetchPage(context.Background(), "", 1, 10)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindFetchFailed))
	assert.Less(t, time.Since(start), 3*time.Second)
}
