package booru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		baseURL  string
		expected Dialect
	}{
		{"https://danbooru.donmai.us", DialectPaginated},
		{"https://safebooru.donmai.us/", DialectPaginated},
		{"https://testbooru.donmai.us", DialectPaginated},
		{"https://gelbooru.com", DialectOffset},
		{"https://safebooru.org", DialectOffset},
		{"http://localhost:8080", DialectOffset},
	}

	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectDialect(tt.baseURL))
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input    string
		expected Dialect
		wantErr  bool
	}{
		{"auto", DialectAuto, false},
		{"", DialectAuto, false},
		{"paginated", DialectPaginated, false},
		{"danbooru", DialectPaginated, false},
		{"Offset", DialectOffset, false},
		{"dapi", DialectOffset, false},
		{"moebooru", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDialectPaging(t *testing.T) {
	assert.Equal(t, 1, DialectPaginated.Cursor(1))
	assert.Equal(t, 3, DialectPaginated.Cursor(3))
	assert.Equal(t, 0, DialectOffset.Cursor(1))
	assert.Equal(t, 2, DialectOffset.Cursor(3))

	assert.Equal(t, 100, DialectPaginated.ClampPageSize(500))
	assert.Equal(t, 1000, DialectOffset.ClampPageSize(5000))
	assert.Equal(t, 500, DialectOffset.ClampPageSize(500))
	assert.Equal(t, DefaultPageSize, DialectOffset.ClampPageSize(0))

	assert.Equal(t, DialectPaginated, DialectAuto.Resolve("https://danbooru.donmai.us"))
	assert.Equal(t, DialectOffset, DialectOffset.Resolve("https://danbooru.donmai.us"))
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		tags     string
		page     int
		limit    int
		expected string
	}{
		{
			name:     "paginated first page",
			endpoint: NewEndpoint("https://danbooru.donmai.us", DialectAuto, "", ""),
			tags:     "touhou",
			page:     1,
			limit:    100,
			expected: "https://danbooru.donmai.us/posts.json?tags=touhou&page=1&limit=100",
		},
		{
			name:     "paginated credentials stay off the URL",
			endpoint: NewEndpoint("https://danbooru.donmai.us/", DialectPaginated, "alice", "secret"),
			tags:     "touhou -rating:explicit",
			page:     2,
			limit:    20,
			expected: "https://danbooru.donmai.us/posts.json?tags=touhou+-rating%3Aexplicit&page=2&limit=20",
		},
		{
			name:     "paginated without tags",
			endpoint: NewEndpoint("https://danbooru.donmai.us", DialectPaginated, "", ""),
			page:     1,
			limit:    100,
			expected: "https://danbooru.donmai.us/posts.json?page=1&limit=100",
		},
		{
			name:     "offset first page",
			endpoint: NewEndpoint("https://safebooru.org", DialectAuto, "", ""),
			tags:     "cat",
			page:     1,
			limit:    50,
			expected: "https://safebooru.org/index.php?page=dapi&s=post&q=index&json=1&tags=cat&pid=0&limit=50",
		},
		{
			name:     "offset third page with credentials",
			endpoint: NewEndpoint("https://gelbooru.com", DialectOffset, "12345", "abc"),
			tags:     "cat",
			page:     3,
			limit:    100,
			expected: "https://gelbooru.com/index.php?page=dapi&s=post&q=index&json=1&tags=cat&pid=2&limit=100&api_key=abc&user_id=12345",
		},
		{
			name:     "offset ignores half credentials",
			endpoint: NewEndpoint("https://gelbooru.com", DialectOffset, "", "abc"),
			page:     1,
			limit:    100,
			expected: "https://gelbooru.com/index.php?page=dapi&s=post&q=index&json=1&pid=0&limit=100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.endpoint.PageURL(tt.tags, tt.page, tt.limit))
		})
	}
}

func TestResolveURL(t *testing.T) {
	e := NewEndpoint("https://safebooru.org", DialectOffset, "", "")

	assert.Equal(t, "https://cdn.example.com/a.png", e.ResolveURL("https://cdn.example.com/a.png"))
	assert.Equal(t, "https://cdn.example.com/a.png", e.ResolveURL("//cdn.example.com/a.png"))
	assert.Equal(t, "https://safebooru.org/images/1/a.jpg", e.ResolveURL("/images/1/a.jpg"))
	assert.Equal(t, "https://safebooru.org/images/1/a.jpg", e.ResolveURL("images/1/a.jpg"))
	assert.Equal(t, "", e.ResolveURL("  "))
}

func TestBuildTagQuery(t *testing.T) {
	assert.Equal(t, "touhou remilia -rating:explicit -comic", BuildTagQuery(" touhou  remilia ", "rating:explicit -comic"))
	assert.Equal(t, "-gore", BuildTagQuery("", "gore"))
	assert.Equal(t, "", BuildTagQuery("", ""))
}
