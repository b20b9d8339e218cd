package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/queue"
)

// Notifier receives queue changes for live fan-out. Satisfied by
// realtime.Dispatcher.
type Notifier interface {
	QueueUpdated(snap *queue.Snapshot, changed *appointment.Appointment)
	PatientRemoved(doctorID, appointmentID uuid.UUID)
}

var slotTimeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// dayLocks serializes mutations per (doctor, date) key. Unrelated doctor-days
// never contend; reads are not blocked at all and see either the fully pre-
// or fully post-mutation state. Entries are reference-counted and removed on
// last release, so the map is bounded by in-flight mutations rather than
// growing with every doctor-day ever touched.
type dayLocks struct {
	mu    sync.Mutex
	locks map[string]*dayLock
}

type dayLock struct {
	mu   sync.Mutex
	refs int
}

func (l *dayLocks) acquire(doctorID uuid.UUID, date time.Time) func() {
	key := doctorID.String() + "|" + date.Format("2006-01-02")
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*dayLock)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &dayLock{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// PatientQueueStatus is one active appointment's view of the queue from the
// patient side.
type PatientQueueStatus struct {
	AppointmentID uuid.UUID            `json:"appointment_id"`
	DoctorID      uuid.UUID            `json:"doctor_id"`
	DoctorName    string               `json:"doctor_name"`
	SlotDate      time.Time            `json:"slot_date"`
	SlotTime      string               `json:"slot_time"`
	Severity      appointment.Severity `json:"severity"`
	PriorityScore int                  `json:"priority_score"`
	QueuePosition int                  `json:"queue_position"`
	EstimatedWait string               `json:"estimated_wait"`
	TokenNumber   int                  `json:"token_number"`
}

// QueueService owns all appointment mutations and queue reads. Every
// successful mutation re-materializes the affected doctor-day before
// returning, so the caller's own next read observes the new order, and then
// pushes the snapshot to subscribed sessions.
type QueueService struct {
	appts    appointment.Repository
	profiles healthprofile.Repository
	doctors  doctor.Repository
	mat      *queue.Materializer
	notifier Notifier
	auditSvc *AuditService
	log      *zap.Logger

	emergencySearchDays int
	locks               dayLocks
}

func NewQueueService(
	appts appointment.Repository,
	profiles healthprofile.Repository,
	doctors doctor.Repository,
	mat *queue.Materializer,
	notifier Notifier,
	auditSvc *AuditService,
	emergencySearchDays int,
	log *zap.Logger,
) *QueueService {
	if emergencySearchDays <= 0 {
		emergencySearchDays = 7
	}
	return &QueueService{
		appts:               appts,
		profiles:            profiles,
		doctors:             doctors,
		mat:                 mat,
		notifier:            notifier,
		auditSvc:            auditSvc,
		emergencySearchDays: emergencySearchDays,
		log:                 log,
	}
}

// Book creates a normal-path appointment. Severity comes from client intake
// (scored when health data is available) or defaults to Low; queue position
// is derived, never assigned.
func (s *QueueService) Book(
	ctx context.Context,
	cmd *appointment.BookAppointmentCommand,
	callerID uuid.UUID,
	callerRole string,
	ip string,
) (*appointment.Appointment, *queue.Snapshot, error) {
	if !slotTimeRe.MatchString(cmd.SlotTime) {
		return nil, nil, appointment.ErrInvalidSlotTime
	}
	if cmd.Severity == "" {
		cmd.Severity = appointment.SeverityLow
	}
	if !cmd.Severity.IsValid() {
		return nil, nil, appointment.ErrInvalidSeverity
	}

	doc, err := s.doctors.GetByID(ctx, cmd.DoctorID)
	if err != nil {
		return nil, nil, err
	}
	if !doc.Available {
		return nil, nil, doctor.ErrDoctorUnavailable
	}

	date := dayOf(cmd.SlotDate)
	unlock := s.locks.acquire(cmd.DoctorID, date)
	defer unlock()

	taken, err := s.appts.SlotTaken(ctx, cmd.DoctorID, date, cmd.SlotTime)
	if err != nil {
		return nil, nil, fmt.Errorf("checking slot availability: %w", err)
	}
	if taken {
		return nil, nil, appointment.ErrSlotNotAvailable
	}

	token, err := s.doctors.NextToken(ctx, cmd.DoctorID)
	if err != nil {
		return nil, nil, fmt.Errorf("assigning token: %w", err)
	}

	apt := &appointment.Appointment{
		PatientID:       cmd.PatientID,
		DoctorID:        cmd.DoctorID,
		SlotDate:        date,
		SlotTime:        cmd.SlotTime,
		TokenNumber:     token,
		Status:          appointment.StatusBooked,
		Symptoms:        cmd.Symptoms,
		SymptomDuration: cmd.SymptomDuration,
		Vitals:          cmd.Vitals,
	}
	s.scoreBooking(ctx, apt, cmd.Severity, false)

	if err := s.appts.Create(ctx, apt); err != nil {
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, nil, fmt.Errorf("creating appointment: %w", err)
	}

	snap, err := s.finishMutation(ctx, cmd.DoctorID, date, apt)
	if err != nil {
		return nil, nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: callerRole,
		Action: "create", ResourceType: "appointment", ResourceID: apt.ID.String(),
		IPAddress: ip,
	})

	return apt, snap, nil
}

// BookEmergency books the earliest free slot within the doctor's working
// hours over the search window, tagged Emergency. It bypasses the normal
// slot negotiation but not the ordering: the Emergency tier wins through the
// comparator, not through a hard-coded position.
func (s *QueueService) BookEmergency(
	ctx context.Context,
	cmd *appointment.EmergencyBookCommand,
	callerID uuid.UUID,
	callerRole string,
	ip string,
) (*appointment.Appointment, *queue.Snapshot, error) {
	doc, err := s.doctors.GetByID(ctx, cmd.DoctorID)
	if err != nil {
		return nil, nil, err
	}
	if !doc.Available {
		return nil, nil, doctor.ErrDoctorUnavailable
	}

	slotDate, slotTime, err := s.earliestFreeSlot(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	unlock := s.locks.acquire(cmd.DoctorID, slotDate)
	defer unlock()

	// The slot scan ran outside the lock; re-check before committing.
	taken, err := s.appts.SlotTaken(ctx, cmd.DoctorID, slotDate, slotTime)
	if err != nil {
		return nil, nil, fmt.Errorf("checking slot availability: %w", err)
	}
	if taken {
		return nil, nil, appointment.ErrSlotNotAvailable
	}

	token, err := s.doctors.NextToken(ctx, cmd.DoctorID)
	if err != nil {
		return nil, nil, fmt.Errorf("assigning token: %w", err)
	}

	apt := &appointment.Appointment{
		PatientID:       cmd.PatientID,
		DoctorID:        cmd.DoctorID,
		SlotDate:        slotDate,
		SlotTime:        slotTime,
		TokenNumber:     token,
		Status:          appointment.StatusBooked,
		Symptoms:        cmd.Symptoms,
		SymptomDuration: cmd.SymptomDuration,
		Vitals:          cmd.Vitals,
	}
	s.scoreBooking(ctx, apt, appointment.SeverityEmergency, true)

	if err := s.appts.Create(ctx, apt); err != nil {
		s.log.Error("failed to create emergency appointment", zap.Error(err))
		return nil, nil, fmt.Errorf("creating appointment: %w", err)
	}

	snap, err := s.finishMutation(ctx, cmd.DoctorID, slotDate, apt)
	if err != nil {
		return nil, nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: callerRole,
		Action: "create", ResourceType: "appointment", ResourceID: apt.ID.String(),
		IPAddress: ip, Changes: `{"emergency":true}`,
	})

	return apt, snap, nil
}

// Complete marks the appointment done and re-materializes, pulling the next
// patient to position 0.
func (s *QueueService) Complete(
	ctx context.Context,
	doctorID, appointmentID uuid.UUID,
	callerID uuid.UUID,
	callerRole string,
	ip string,
) (*queue.Snapshot, error) {
	return s.transition(ctx, doctorID, appointmentID, callerID, callerRole, ip, "", func(a *appointment.Appointment) error {
		return a.Complete()
	})
}

// Cancel removes the appointment from all future materializations. Patients
// may cancel only their own appointments.
func (s *QueueService) Cancel(
	ctx context.Context,
	doctorID, appointmentID uuid.UUID,
	reason string,
	callerID uuid.UUID,
	callerRole string,
	ip string,
) (*queue.Snapshot, error) {
	return s.transition(ctx, doctorID, appointmentID, callerID, callerRole, ip, reason, func(a *appointment.Appointment) error {
		if callerRole == "patient" && a.PatientID != callerID {
			return ErrForbidden
		}
		return a.Cancel(reason)
	})
}

func (s *QueueService) transition(
	ctx context.Context,
	doctorID, appointmentID uuid.UUID,
	callerID uuid.UUID,
	callerRole, ip, changes string,
	apply func(*appointment.Appointment) error,
) (*queue.Snapshot, error) {
	apt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != doctorID {
		return nil, appointment.ErrAppointmentNotFound
	}

	date := dayOf(apt.SlotDate)
	unlock := s.locks.acquire(doctorID, date)
	defer unlock()

	// Re-read under the lock: a racing mutation may have reached a terminal
	// state between the first fetch and lock acquisition, and the transition
	// check must run against the current row.
	apt, err = s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if err := apply(apt); err != nil {
		return nil, err
	}
	if err := s.appts.UpdateStatus(ctx, apt); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	snap, err := s.mat.Materialize(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("rematerializing queue: %w", err)
	}
	if s.notifier != nil {
		s.notifier.PatientRemoved(doctorID, appointmentID)
		s.notifier.QueueUpdated(snap, nil)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: callerRole,
		Action: "update", ResourceType: "appointment", ResourceID: appointmentID.String(),
		IPAddress: ip,
		Changes:   fmt.Sprintf(`{"status":%q,"reason":%q}`, apt.Status, changes),
	})

	return snap, nil
}

// Reprioritize overrides an active appointment's severity (doctor console
// action) and re-sorts the queue. The override is sticky: subsequent
// materializations trust the stored severity instead of rescoring it from
// health data.
func (s *QueueService) Reprioritize(
	ctx context.Context,
	appointmentID uuid.UUID,
	severity appointment.Severity,
	isEmergency bool,
	callerID uuid.UUID,
	callerRole string,
	ip string,
) (*queue.Snapshot, error) {
	if !severity.IsValid() {
		return nil, appointment.ErrInvalidSeverity
	}

	apt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	date := dayOf(apt.SlotDate)
	unlock := s.locks.acquire(apt.DoctorID, date)
	defer unlock()

	// The first read ran outside the lock; the state check must see the
	// current row, not a stale copy.
	apt, err = s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !apt.IsActive() {
		return nil, appointment.ErrInvalidStatusTransition
	}

	apt.Severity = severity
	apt.IsEmergency = isEmergency
	apt.SeverityOverridden = true
	if apt.SeverityScore < queue.FloorScore(severity) {
		apt.SeverityScore = queue.FloorScore(severity)
	}
	if err := s.appts.UpdateScoring(ctx, apt); err != nil {
		return nil, fmt.Errorf("updating appointment severity: %w", err)
	}

	snap, err := s.finishMutation(ctx, apt.DoctorID, date, apt)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: callerRole,
		Action: "update", ResourceType: "appointment", ResourceID: appointmentID.String(),
		IPAddress: ip,
		Changes:   fmt.Sprintf(`{"severity":%q,"emergency":%t}`, severity, isEmergency),
	})

	return snap, nil
}

// DoctorQueue returns the current ordered queue for one doctor-day.
func (s *QueueService) DoctorQueue(ctx context.Context, doctorID uuid.UUID, date time.Time) (*queue.Snapshot, error) {
	return s.mat.Materialize(ctx, doctorID, dayOf(date))
}

// Stats returns queue statistics for one doctor-day.
func (s *QueueService) Stats(ctx context.Context, doctorID uuid.UUID, date time.Time) (*queue.Stats, error) {
	snap, err := s.mat.Materialize(ctx, doctorID, dayOf(date))
	if err != nil {
		return nil, err
	}
	return queue.StatsFor(snap), nil
}

// PatientStatus returns one entry per active appointment of the patient,
// each with its live queue position and wait estimate.
func (s *QueueService) PatientStatus(ctx context.Context, patientID uuid.UUID) ([]*PatientQueueStatus, error) {
	active, err := s.appts.ListActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("listing patient appointments: %w", err)
	}

	statuses := make([]*PatientQueueStatus, 0, len(active))
	for _, apt := range active {
		snap, err := s.mat.Materialize(ctx, apt.DoctorID, dayOf(apt.SlotDate))
		if err != nil {
			s.log.Warn("skipping appointment in patient status",
				zap.String("appointment_id", apt.ID.String()),
				zap.Error(err),
			)
			continue
		}

		pos := snap.Position(apt.ID)
		if pos < 0 {
			continue
		}
		entry := snap.Entries[pos]

		doctorName := ""
		if doc, err := s.doctors.GetByID(ctx, apt.DoctorID); err == nil {
			doctorName = doc.Name
		}

		statuses = append(statuses, &PatientQueueStatus{
			AppointmentID: entry.ID,
			DoctorID:      entry.DoctorID,
			DoctorName:    doctorName,
			SlotDate:      entry.SlotDate,
			SlotTime:      entry.SlotTime,
			Severity:      entry.Severity,
			PriorityScore: entry.SeverityScore,
			QueuePosition: entry.QueuePosition,
			EstimatedWait: entry.EstimatedWait,
			TokenNumber:   entry.TokenNumber,
		})
	}

	return statuses, nil
}

// scoreBooking sets severity at booking time. Health data (stored profile
// overridden by appointment intake) wins over the client-supplied category;
// with no health data at all the supplied category stands with its tier's
// floor score. Emergency bookings never drop below the Emergency tier.
func (s *QueueService) scoreBooking(ctx context.Context, apt *appointment.Appointment, supplied appointment.Severity, emergency bool) {
	profile, err := s.profiles.GetByPatient(ctx, apt.PatientID)
	if err != nil {
		if !errors.Is(err, healthprofile.ErrProfileNotFound) {
			s.log.Warn("health profile lookup failed at booking, scoring from intake only",
				zap.String("patient_id", apt.PatientID.String()),
				zap.Error(err),
			)
		}
		profile = nil
	}

	if profile != nil || len(apt.Symptoms) > 0 || apt.Vitals != nil {
		score, category := queue.Score(profile, &queue.Intake{
			Symptoms: apt.Symptoms,
			Vitals:   apt.Vitals,
		})
		apt.SeverityScore = score
		apt.Severity = category
	} else {
		apt.Severity = supplied
		apt.SeverityScore = queue.FloorScore(supplied)
	}

	apt.IsEmergency = emergency
	if emergency && apt.Severity != appointment.SeverityEmergency {
		apt.Severity = appointment.SeverityEmergency
	}
}

// finishMutation re-materializes the affected doctor-day, copies the derived
// queue fields onto the changed appointment, and pushes the snapshot.
func (s *QueueService) finishMutation(ctx context.Context, doctorID uuid.UUID, date time.Time, changed *appointment.Appointment) (*queue.Snapshot, error) {
	snap, err := s.mat.Materialize(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("rematerializing queue: %w", err)
	}

	if pos := snap.Position(changed.ID); pos >= 0 {
		changed.QueuePosition = pos
		changed.EstimatedWait = snap.Entries[pos].EstimatedWait
		changed.Severity = snap.Entries[pos].Severity
		changed.SeverityScore = snap.Entries[pos].SeverityScore
	}

	if s.notifier != nil {
		s.notifier.QueueUpdated(snap, changed)
	}
	return snap, nil
}

// earliestFreeSlot scans the next emergencySearchDays for the first hourly
// slot within the doctor's working hours that no active appointment holds.
func (s *QueueService) earliestFreeSlot(ctx context.Context, doc *doctor.Doctor) (time.Time, string, error) {
	hours := doc.Hours()
	now := time.Now().UTC()

	for day := 0; day < s.emergencySearchDays; day++ {
		date := dayOf(now.AddDate(0, 0, day))

		active, err := s.appts.ListActive(ctx, doc.ID, date)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("listing appointments for slot search: %w", err)
		}
		taken := make(map[string]struct{}, len(active))
		for _, apt := range active {
			taken[apt.SlotTime] = struct{}{}
		}

		for hour := hours.StartHour; hour < hours.EndHour; hour++ {
			// Skip hours already past on the current day.
			if day == 0 && hour <= now.Hour() {
				continue
			}
			slot := fmt.Sprintf("%02d:00", hour)
			if _, ok := taken[slot]; !ok {
				return date, slot, nil
			}
		}
	}

	return time.Time{}, "", appointment.ErrNoSlotAvailable
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
