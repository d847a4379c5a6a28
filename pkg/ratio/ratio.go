// Package ratio parses aspect ratio expressions such as "16:9", "4/3" or "1.777".
package ratio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	errs "boorudl/pkg/errors"
)

// Parse converts a single ratio expression into width/height as a float.
func Parse(expr string) (float64, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return 0, errs.InvalidRatio(expr, fmt.Errorf("empty expression"))
	}

	var value float64
	if sep := strings.IndexAny(s, ":/"); sep >= 0 {
		a, b := s[:sep], s[sep+1:]
		if strings.ContainsAny(b, ":/") {
			return 0, errs.InvalidRatio(expr, fmt.Errorf("more than one separator"))
		}
		num, err := parsePart(a)
		if err != nil {
			return 0, errs.InvalidRatio(expr, err)
		}
		den, err := parsePart(b)
		if err != nil {
			return 0, errs.InvalidRatio(expr, err)
		}
		if den == 0 {
			return 0, errs.InvalidRatio(expr, fmt.Errorf("division by zero"))
		}
		value = num / den
	} else {
		d, err := parsePart(s)
		if err != nil {
			return 0, errs.InvalidRatio(expr, err)
		}
		value = d
	}

	if value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errs.InvalidRatio(expr, fmt.Errorf("ratio must be positive and finite"))
	}
	return value, nil
}

// ParseAll parses every expression; an argument may hold several
// whitespace-separated expressions ("16:9 1:1").
func ParseAll(exprs []string) ([]float64, error) {
	var ratios []float64
	for _, arg := range exprs {
		for _, expr := range strings.Fields(arg) {
			r, err := Parse(expr)
			if err != nil {
				return nil, err
			}
			ratios = append(ratios, r)
		}
	}
	return ratios, nil
}

func parsePart(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}
