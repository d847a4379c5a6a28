// Package filter decides which normalized posts are worth downloading.
package filter

import (
	"fmt"
	"math"
	"strings"

	"boorudl/pkg/booru"
)

// Tolerance is the relative deviation allowed when matching a target ratio.
const Tolerance = 0.02

// epsilon absorbs float rounding in target*Tolerance.
const epsilon = 1e-9

// Reason names the filter that rejected a post.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonNoImage   Reason = "no_image_url"
	ReasonVideo     Reason = "video"
	ReasonRatio     Reason = "ratio"
	ReasonMinWidth  Reason = "min_width"
	ReasonMinHeight Reason = "min_height"
	ReasonMinScore  Reason = "min_score"
)

// videoExtensions are never downloaded, whatever else is configured.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".webm": {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".mkv":  {},
	".gifv": {},
	".gif":  {},
}

// IsVideoExtension reports whether ext names a video or animation format.
func IsVideoExtension(ext string) bool {
	_, ok := videoExtensions[strings.ToLower(ext)]
	return ok
}

// Options configures a Chain. Zero values disable the width and height
// filters, an empty Ratios slice disables the ratio filter and a nil
// MinScore disables the score filter.
type Options struct {
	Ratios    []float64
	MinWidth  int
	MinHeight int
	MinScore  *int
}

// Decision is the outcome of evaluating one post.
type Decision struct {
	Accepted bool
	Reason   Reason
	Detail   string
}

func accept() Decision {
	return Decision{Accepted: true}
}

func reject(reason Reason, format string, args ...interface{}) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Chain applies the filters in a fixed order: image URL, extension, ratio,
// minimum width, minimum height, minimum score. The first failing filter wins.
type Chain struct {
	opts Options
}

// New creates a filter chain.
func New(opts Options) *Chain {
	return &Chain{opts: opts}
}

// Options returns the chain configuration.
func (c *Chain) Options() Options {
	return c.opts
}

// Accept reports whether the post passes every filter.
func (c *Chain) Accept(p booru.Post) bool {
	return c.Evaluate(p).Accepted
}

// Evaluate runs the chain and explains a rejection.
func (c *Chain) Evaluate(p booru.Post) Decision {
	if p.ImageURL == "" {
		return reject(ReasonNoImage, "post has no image URL")
	}
	if IsVideoExtension(p.Extension) {
		return reject(ReasonVideo, "video/animation %s", p.Extension)
	}

	if len(c.opts.Ratios) > 0 {
		if p.Width <= 0 || p.Height <= 0 {
			return reject(ReasonRatio, "dimensions unknown")
		}
		actual := float64(p.Width) / float64(p.Height)
		if !MatchesAny(actual, c.opts.Ratios) {
			return reject(ReasonRatio, "ratio %.4f (%dx%d) matches none of %s", actual, p.Width, p.Height, formatRatios(c.opts.Ratios))
		}
	}

	if c.opts.MinWidth > 0 && (p.Width <= 0 || p.Width < c.opts.MinWidth) {
		return reject(ReasonMinWidth, "width %d below %d", p.Width, c.opts.MinWidth)
	}
	if c.opts.MinHeight > 0 && (p.Height <= 0 || p.Height < c.opts.MinHeight) {
		return reject(ReasonMinHeight, "height %d below %d", p.Height, c.opts.MinHeight)
	}

	if c.opts.MinScore != nil {
		if p.Score == nil {
			return reject(ReasonMinScore, "score unknown")
		}
		if *p.Score < *c.opts.MinScore {
			return reject(ReasonMinScore, "score %d below %d", *p.Score, *c.opts.MinScore)
		}
	}

	return accept()
}

// Matches reports whether actual lies within Tolerance of target, inclusive.
func Matches(actual, target float64) bool {
	return math.Abs(actual-target) <= target*Tolerance+epsilon
}

// MatchesAny reports whether actual matches at least one target.
func MatchesAny(actual float64, targets []float64) bool {
	for _, t := range targets {
		if Matches(actual, t) {
			return true
		}
	}
	return false
}

func formatRatios(ratios []float64) string {
	parts := make([]string, len(ratios))
	for i, r := range ratios {
		parts[i] = fmt.Sprintf("%.4f", r)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
