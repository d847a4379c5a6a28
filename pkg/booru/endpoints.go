package booru

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// PaginatedEndpoint is the post listing path of Danbooru-like sites.
	PaginatedEndpoint = "/posts.json"

	// OffsetEndpoint is the DAPI entry point.
	OffsetEndpoint = "/index.php"
)

// Endpoint builds page request URLs for one site.
type Endpoint struct {
	BaseURL  string
	Dialect  Dialect
	Username string
	APIKey   string
}

// NewEndpoint resolves the dialect and strips trailing slashes from baseURL.
func NewEndpoint(baseURL string, dialect Dialect, username, apiKey string) Endpoint {
	return Endpoint{
		BaseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Dialect:  dialect.Resolve(baseURL),
		Username: username,
		APIKey:   apiKey,
	}
}

// HasCredentials reports whether both username and API key are set.
func (e Endpoint) HasCredentials() bool {
	return e.Username != "" && e.APIKey != ""
}

// PageURL builds the listing URL for the logical 1-based page.
// Paginated credentials travel as basic auth, never on the URL.
func (e Endpoint) PageURL(tags string, page, limit int) string {
	var q query
	cursor := strconv.Itoa(e.Dialect.Cursor(page))
	size := strconv.Itoa(limit)

	if e.Dialect == DialectPaginated {
		q.add("tags", tags)
		q.set("page", cursor)
		q.set("limit", size)
		return fmt.Sprintf("%s%s?%s", e.BaseURL, PaginatedEndpoint, q.encode())
	}

	q.set("page", "dapi")
	q.set("s", "post")
	q.set("q", "index")
	q.set("json", "1")
	q.add("tags", tags)
	q.set("pid", cursor)
	q.set("limit", size)
	if e.HasCredentials() {
		q.set("api_key", e.APIKey)
		q.set("user_id", e.Username)
	}
	return fmt.Sprintf("%s%s?%s", e.BaseURL, OffsetEndpoint, q.encode())
}

// ResolveURL makes ref absolute against the base URL. Protocol-relative
// references take the base scheme. Unparseable input is returned as is.
func (e Endpoint) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}
	base, err := url.Parse(e.BaseURL + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// BuildTagQuery joins include tags with exclude tags prefixed by "-".
func BuildTagQuery(include, exclude string) string {
	parts := strings.Fields(include)
	for _, tag := range strings.Fields(exclude) {
		if !strings.HasPrefix(tag, "-") {
			tag = "-" + tag
		}
		parts = append(parts, tag)
	}
	return strings.Join(parts, " ")
}

// query keeps parameters in insertion order; url.Values would sort them.
type query struct {
	keys   []string
	values []string
}

func (q *query) set(key, value string) {
	q.keys = append(q.keys, key)
	q.values = append(q.values, value)
}

// add sets key only when value is non-empty.
func (q *query) add(key, value string) {
	if value != "" {
		q.set(key, value)
	}
}

func (q *query) encode() string {
	var b strings.Builder
	for i, k := range q.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(q.values[i]))
	}
	return b.String()
}
