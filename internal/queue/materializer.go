package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
)

// Snapshot is the ordered queue for one doctor-day at a point in time.
// Ephemeral: regenerated on demand and on every mutation, never persisted.
type Snapshot struct {
	DoctorID         uuid.UUID                  `json:"doctor_id"`
	Date             time.Time                  `json:"date"`
	GeneratedAt      time.Time                  `json:"generated_at"`
	ConsultationMins int                        `json:"consultation_mins"`
	Entries          []*appointment.Appointment `json:"entries"`
}

// Position returns the 0-based position of the given appointment, or -1.
func (s *Snapshot) Position(id uuid.UUID) int {
	for i, a := range s.Entries {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Materializer recomputes ordered queue snapshots from the appointment and
// health-profile stores. Read-only over persisted state: calling it twice
// with no intervening mutation yields an identical sequence.
type Materializer struct {
	appts               appointment.Repository
	profiles            healthprofile.Repository
	doctors             doctor.Repository
	defaultConsultation int
	log                 *zap.Logger

	// Observability hooks. Optional.
	onMaterialize func(time.Duration)
	onSkip        func()
}

func NewMaterializer(
	appts appointment.Repository,
	profiles healthprofile.Repository,
	doctors doctor.Repository,
	defaultConsultationMins int,
	log *zap.Logger,
) *Materializer {
	if defaultConsultationMins < 5 || defaultConsultationMins > 60 {
		defaultConsultationMins = DefaultConsultationMins
	}
	return &Materializer{
		appts:               appts,
		profiles:            profiles,
		doctors:             doctors,
		defaultConsultation: defaultConsultationMins,
		log:                 log,
	}
}

// OnMaterialize registers a callback invoked with the build duration of
// every snapshot.
func (m *Materializer) OnMaterialize(fn func(time.Duration)) { m.onMaterialize = fn }

// OnSkip registers a callback invoked whenever an entry is dropped from a
// snapshot because rescoring failed.
func (m *Materializer) OnSkip(fn func()) { m.onSkip = fn }

// Materialize loads the active appointment set for (doctorID, date), scores
// each entry, and returns the totally ordered queue with positions and wait
// estimates populated.
//
// A single appointment whose health profile cannot be loaded is skipped with
// a warning; one corrupt record must not take down the whole doctor's queue.
func (m *Materializer) Materialize(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Snapshot, error) {
	start := time.Now()

	doc, err := m.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("loading doctor: %w", err)
	}

	active, err := m.appts.ListActive(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("listing active appointments: %w", err)
	}

	entries := make([]*appointment.Appointment, 0, len(active))
	for _, apt := range active {
		scored, err := m.scoreEntry(ctx, apt)
		if err != nil {
			m.log.Warn("skipping appointment during queue materialization",
				zap.String("appointment_id", apt.ID.String()),
				zap.String("doctor_id", doctorID.String()),
				zap.Error(err),
			)
			if m.onSkip != nil {
				m.onSkip()
			}
			continue
		}
		entries = append(entries, scored)
	}

	SortByPriority(entries)

	consultMins := doc.ConsultationMins(m.defaultConsultation)
	for i, apt := range entries {
		apt.QueuePosition = i
		apt.EstimatedWait = EstimateWait(i, consultMins)
	}

	if m.onMaterialize != nil {
		m.onMaterialize(time.Since(start))
	}

	return &Snapshot{
		DoctorID:         doctorID,
		Date:             date,
		GeneratedAt:      time.Now(),
		ConsultationMins: consultMins,
		Entries:          entries,
	}, nil
}

// scoreEntry recomputes severity for one appointment. The stored profile is
// the baseline and appointment-time intake overrides it. When the patient
// has no profile and the appointment carries no intake, the severity set at
// booking stands as-is: a pre-set category is trusted without the scorer.
// The same holds after a doctor's priority override, which marks the stored
// severity authoritative.
// An emergency booking keeps the Emergency tier regardless of what the
// scorer derives from the available data.
func (m *Materializer) scoreEntry(ctx context.Context, apt *appointment.Appointment) (*appointment.Appointment, error) {
	// A doctor's override is authoritative; health data is not consulted.
	if apt.SeverityOverridden {
		if apt.IsEmergency && apt.Severity != appointment.SeverityEmergency {
			apt.Severity = appointment.SeverityEmergency
		}
		return apt, nil
	}

	profile, err := m.profiles.GetByPatient(ctx, apt.PatientID)
	switch {
	case err == nil:
	case errors.Is(err, healthprofile.ErrProfileNotFound):
		profile = nil
	default:
		return nil, fmt.Errorf("loading health profile: %w", err)
	}

	if profile != nil || hasIntake(apt) {
		score, category := Score(profile, intakeOf(apt))
		apt.SeverityScore = score
		apt.Severity = category
	}

	if apt.IsEmergency && apt.Severity != appointment.SeverityEmergency {
		apt.Severity = appointment.SeverityEmergency
	}

	return apt, nil
}

func hasIntake(apt *appointment.Appointment) bool {
	return len(apt.Symptoms) > 0 || apt.Vitals != nil
}

func intakeOf(apt *appointment.Appointment) *Intake {
	return &Intake{
		Symptoms: apt.Symptoms,
		Vitals:   apt.Vitals,
	}
}
