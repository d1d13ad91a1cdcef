package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

type Stats struct {
	TotalImages   atomic.Int64
	TotalBytes    atomic.Int64
	TotalChapters atomic.Int64
}

// PrintSummary writes the end-of-run report of the read command.
func (s *Stats) PrintSummary(w io.Writer, elapsed time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download Summary:")
	fmt.Fprintf(w, "Chapters: %d\n", s.TotalChapters.Load())
	fmt.Fprintf(w, "Images:   %d\n", s.TotalImages.Load())
	fmt.Fprintf(w, "Data:     %s\n", HumanBytes(s.TotalBytes.Load()))
	fmt.Fprintf(w, "Time:     %s\n", elapsed.Round(time.Second))
}

// HumanBytes formats n with a binary unit, e.g. "1.50 KB".
func HumanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
