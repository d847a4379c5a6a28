package ui

import (
	"fmt"
	"io"
	"time"
)

// Summary is the end-of-run report
type Summary struct {
	Downloaded     int
	AlreadyPresent int
	Failed         int
	Filtered       int
	Pages          int
	Budget         int
	StopReason     string
	ImagesDir      string
	TagsDir        string
	Elapsed        time.Duration
}

// Total returns the number of images counted toward the budget
func (s Summary) Total() int {
	return s.Downloaded + s.AlreadyPresent
}

// PrintSummary prints the summary to the terminal output. It is printed in
// quiet mode too.
func PrintSummary(s Summary) {
	WriteSummary(Output(), s)
}

// WriteSummary writes the summary block to w
func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\n%s %d/%d images (%d downloaded, %d already present)\n",
		Green("[DONE]"),
		s.Total(),
		s.Budget,
		s.Downloaded,
		s.AlreadyPresent,
	)
	fmt.Fprintf(w, "  %s %d pages • %d filtered • %d failed • %s\n",
		Dim("•"),
		s.Pages,
		s.Filtered,
		s.Failed,
		FormatDuration(s.Elapsed),
	)
	if s.StopReason != "" {
		fmt.Fprintf(w, "  %s stopped: %s\n", Dim("•"), s.StopReason)
	}
	fmt.Fprintf(w, "  %s images: %s\n", Dim("•"), s.ImagesDir)
	fmt.Fprintf(w, "  %s tags:   %s\n", Dim("•"), s.TagsDir)
}
