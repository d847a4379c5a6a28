package booru

import "github.com/tidwall/gjson"

// Post is the canonical form of an upstream post record.
type Post struct {
	// ID is the filesystem-safe identifier used to name output files.
	ID string

	// SyntheticID is set when the record carried no identifier and ID was
	// derived from the image URL.
	SyntheticID bool

	// ImageURL is absolute; empty when the record had no usable URL.
	ImageURL string

	// Tags is whitespace normalized and space separated.
	Tags string

	// Width and Height are zero when unknown.
	Width  int
	Height int

	// Score is nil when no score field could be read.
	Score *int

	// Extension is lower-case with the leading dot, ".jpg" when the URL has none.
	Extension string
}

// HasDimensions reports whether both width and height are known.
func (p Post) HasDimensions() bool {
	return p.Width > 0 && p.Height > 0
}

// AspectRatio is width/height, zero when dimensions are unknown.
func (p Post) AspectRatio() float64 {
	if !p.HasDimensions() {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// Filename is the image file name, e.g. "1234.png".
func (p Post) Filename() string {
	return p.ID + p.Extension
}

// TagFilename is the tag text file name, e.g. "1234.txt".
func (p Post) TagFilename() string {
	return p.ID + ".txt"
}

// Record is one raw post object as returned by a site. Its fields are only
// read through Normalize.
type Record struct {
	raw gjson.Result
}

// Raw returns the record JSON.
func (r Record) Raw() string {
	return r.raw.Raw
}
