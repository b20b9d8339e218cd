package queue

import "fmt"

// DefaultConsultationMins is the fallback average consultation time when a
// doctor profile carries none.
const DefaultConsultationMins = 15

// EstimateWait renders the expected wait for a 0-based queue position given
// the doctor's average consultation minutes. Position 0 is being seen now.
// An avgMins outside the supported [5,60] range falls back to the default
// rather than failing. Monotonically non-decreasing in position.
func EstimateWait(position, avgMins int) string {
	if position <= 0 {
		return "Now"
	}
	if avgMins < 5 || avgMins > 60 {
		avgMins = DefaultConsultationMins
	}

	minutes := position * avgMins
	if minutes <= 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
