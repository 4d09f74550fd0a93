package model

import (
	"fmt"
	"time"
)

// Metrics is a read-only snapshot of crawl progress.
type Metrics struct {
	// Visited is the number of drives drained from the frontier.
	Visited int `json:"visited"`

	// Pending is the number of drives still waiting in the frontier.
	Pending int `json:"pending"`

	// Mounted is the number of drives mounted into the root drive.
	Mounted int `json:"mounted"`

	// Elapsed is the wall-clock time since the run started.
	Elapsed time.Duration `json:"elapsed"`
}

// ElapsedHuman returns Elapsed in a human-scaled unit.
func (m Metrics) ElapsedHuman() string {
	return HumanDuration(m.Elapsed)
}

// HumanDuration formats d in seconds, minutes or hours depending on magnitude.
// Durations under a minute are shown in seconds, under an hour in minutes,
// and anything longer in hours.
func HumanDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.2f seconds", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.2f minutes", d.Minutes())
	default:
		return fmt.Sprintf("%.2f hours", d.Hours())
	}
}
