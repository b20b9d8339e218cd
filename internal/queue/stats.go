package queue

import (
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
)

// Stats summarizes one doctor-day queue for the console dashboard.
type Stats struct {
	TotalInQueue   int                          `json:"total_in_queue"`
	SeverityCounts map[appointment.Severity]int `json:"severity_counts"`
	EmergencyCount int                          `json:"emergency_count"`
	// EstimatedClearTime is the cumulative wait across the whole queue.
	EstimatedClearTime string `json:"estimated_clear_time"`
	AvgWaitPerPatient  string `json:"avg_wait_per_patient"`
}

// StatsFor derives queue statistics from a materialized snapshot.
func StatsFor(snap *Snapshot) *Stats {
	counts := map[appointment.Severity]int{
		appointment.SeverityLow:       0,
		appointment.SeverityMedium:    0,
		appointment.SeverityHigh:      0,
		appointment.SeverityEmergency: 0,
	}

	emergencies := 0
	totalWaitMins := 0
	for i, apt := range snap.Entries {
		counts[apt.Severity]++
		if apt.IsEmergency {
			emergencies++
		}
		totalWaitMins += i * snap.ConsultationMins
	}

	avgWait := "N/A"
	if len(snap.Entries) > 0 {
		avgWait = fmt.Sprintf("%d min", snap.ConsultationMins)
	}

	return &Stats{
		TotalInQueue:       len(snap.Entries),
		SeverityCounts:     counts,
		EmergencyCount:     emergencies,
		EstimatedClearTime: fmt.Sprintf("%dh %dm", totalWaitMins/60, totalWaitMins%60),
		AvgWaitPerPatient:  avgWait,
	}
}
