package queue

import (
	"sort"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
)

// Less reports whether a orders ahead of b in the queue. The comparison is a
// lexicographic tuple, not a blended scalar, so an Emergency can never be
// outranked by accumulated wait time on a lower tier:
//
//	1. severity category (Emergency > High > Medium > Low)
//	2. numeric severity score, higher first
//	3. booking time, older first (longer waits surface within a tier)
//	4. arrival token, lower first
//
// Tokens are unique per doctor, so the order is total: no ties survive.
func Less(a, b *appointment.Appointment) bool {
	if ar, br := a.Severity.Rank(), b.Severity.Rank(); ar != br {
		return ar > br
	}
	if a.SeverityScore != b.SeverityScore {
		return a.SeverityScore > b.SeverityScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.TokenNumber < b.TokenNumber
}

// SortByPriority orders appointments in place by Less.
func SortByPriority(appts []*appointment.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return Less(appts[i], appts[j])
	})
}
