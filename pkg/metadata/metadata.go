package metadata

import (
	"fmt"
	"strings"

	"boorudl/pkg/booru"
)

// Format selects how tag files are written
type Format string

const (
	// FormatPlain writes only the space separated tags
	FormatPlain Format = "plain"
	// FormatDetailed prefixes the tags with a commented header
	FormatDetailed Format = "detailed"
)

const headerPrefix = "# "

// ParseFormat converts a configuration value into a Format
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPlain:
		return FormatPlain, nil
	case FormatDetailed:
		return FormatDetailed, nil
	default:
		return "", fmt.Errorf("unknown tag format %q (expected plain or detailed)", s)
	}
}

// TagFile is the content of one tag text file
type TagFile struct {
	PostID   string
	ImageURL string
	Width    int
	Height   int
	Score    *int
	Tags     string
}

// FromPost collects the tag file content for a post
func FromPost(p booru.Post) *TagFile {
	return &TagFile{
		PostID:   p.ID,
		ImageURL: p.ImageURL,
		Width:    p.Width,
		Height:   p.Height,
		Score:    p.Score,
		Tags:     p.Tags,
	}
}

// Render produces the file text in the given format
func (f *TagFile) Render(format Format) string {
	if format != FormatDetailed {
		return f.Tags
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%spost_id: %s\n", headerPrefix, f.PostID)
	fmt.Fprintf(&b, "%simage_url: %s\n", headerPrefix, f.ImageURL)
	if f.Width > 0 && f.Height > 0 {
		fmt.Fprintf(&b, "%sdimensions: %dx%d\n", headerPrefix, f.Width, f.Height)
		fmt.Fprintf(&b, "%saspect: %s\n", headerPrefix, f.GetAspectRatio())
	}
	if f.Score != nil {
		fmt.Fprintf(&b, "%sscore: %d\n", headerPrefix, *f.Score)
	}
	b.WriteString(f.Tags)
	return b.String()
}

// GetAspectRatio returns the aspect ratio as a string
func (f *TagFile) GetAspectRatio() string {
	if f.Height == 0 {
		return "unknown"
	}

	ratio := float64(f.Width) / float64(f.Height)

	// Common aspect ratios
	switch {
	case ratio > 2.3 && ratio < 2.4:
		return "21:9"
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.55 && ratio < 1.65:
		return "16:10"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}
