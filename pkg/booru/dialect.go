package booru

import (
	"fmt"
	"strings"
)

// Dialect identifies the request/response convention of a booru site.
type Dialect string

const (
	// DialectAuto asks DetectDialect to choose from the base URL.
	DialectAuto Dialect = "auto"

	// DialectPaginated is the Danbooru convention: /posts.json with 1-based page numbers.
	DialectPaginated Dialect = "paginated"

	// DialectOffset is the Gelbooru/Safebooru DAPI convention: /index.php with 0-based pid.
	DialectOffset Dialect = "offset"
)

const (
	// MaxPaginatedPageSize is the largest limit Danbooru-like sites accept.
	MaxPaginatedPageSize = 100

	// MaxOffsetPageSize is the largest limit DAPI sites accept.
	MaxOffsetPageSize = 1000

	// DefaultPageSize is used when no page size is configured.
	DefaultPageSize = 100
)

// ParseDialect converts a user supplied name into a Dialect.
// "danbooru" and "dapi" are accepted as aliases.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return DialectAuto, nil
	case "paginated", "danbooru":
		return DialectPaginated, nil
	case "offset", "dapi", "gelbooru":
		return DialectOffset, nil
	default:
		return "", fmt.Errorf("unknown api type %q (expected auto, paginated, offset, danbooru or dapi)", name)
	}
}

// DetectDialect picks the dialect for a base URL: Danbooru hosts use the
// paginated convention, everything else the offset one.
func DetectDialect(baseURL string) Dialect {
	lower := strings.ToLower(baseURL)
	if strings.Contains(lower, "danbooru") || strings.Contains(lower, "donmai") {
		return DialectPaginated
	}
	return DialectOffset
}

// Resolve returns d, or the detected dialect when d is auto or empty.
func (d Dialect) Resolve(baseURL string) Dialect {
	if d == "" || d == DialectAuto {
		return DetectDialect(baseURL)
	}
	return d
}

// FirstPage is the wire value of the first page cursor.
func (d Dialect) FirstPage() int {
	if d == DialectPaginated {
		return 1
	}
	return 0
}

// MaxPageSize is the site-side cap on the page size.
func (d Dialect) MaxPageSize() int {
	if d == DialectPaginated {
		return MaxPaginatedPageSize
	}
	return MaxOffsetPageSize
}

// ClampPageSize bounds limit to the dialect cap, substituting the default
// for non-positive values.
func (d Dialect) ClampPageSize(limit int) int {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if max := d.MaxPageSize(); limit > max {
		return max
	}
	return limit
}

// Cursor translates a logical 1-based page index into the wire cursor.
func (d Dialect) Cursor(page int) int {
	return d.FirstPage() + page - 1
}

func (d Dialect) String() string {
	return string(d)
}
