package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// FormatRemaining renders a countdown as mm:ss; hours fold into minutes
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// QuotaBar renders progress towards the soft quota pause
func QuotaBar(saved, threshold int) string {
	const width = 20
	if threshold <= 0 {
		return fmt.Sprintf("[%s] %d", strings.Repeat(ProgressEmpty, width), saved)
	}
	filled := saved * width / threshold
	if filled > width {
		filled = width
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, saved, threshold)
}

// Summary is the end-of-run report printed by the scrape command
type Summary struct {
	Handle         string
	Output         string
	Pages          int
	TotalSaved     int
	Skipped        int
	RateLimitHits  int
	EmptyCooldowns int
	Reason         string
	Elapsed        time.Duration
}

// PrintSummary prints the run summary block
func PrintSummary(s Summary) {
	fmt.Fprintf(Output, "\n%s\n", Magenta("[HARVEST COMPLETE]"))
	PrintInfo("Account", "@"+s.Handle)
	PrintInfo("Output", s.Output)
	PrintInfo("Pages", fmt.Sprintf("%d", s.Pages))
	PrintInfo("Saved", fmt.Sprintf("%d", s.TotalSaved))
	if s.Skipped > 0 {
		PrintInfo("Skipped", fmt.Sprintf("%d", s.Skipped))
	}
	PrintInfo("Rate limits", fmt.Sprintf("%d", s.RateLimitHits))
	PrintInfo("Empty cool-downs", fmt.Sprintf("%d", s.EmptyCooldowns))
	PrintInfo("Stopped", s.Reason)
	PrintInfo("Elapsed", s.Elapsed.Round(time.Second).String())
	if s.Elapsed > 0 {
		rate := float64(s.TotalSaved) / s.Elapsed.Minutes()
		fmt.Fprintln(Output, Dim(fmt.Sprintf("%.1f posts/min", rate)))
	}
}
