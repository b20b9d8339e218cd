package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/queue"
)

// In-memory stores mirroring the repository contracts, sufficient for
// exercising the full mutation paths without a database.

type memApptRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*appointment.Appointment
	order []uuid.UUID
}

func newMemApptRepo() *memApptRepo {
	return &memApptRepo{byID: map[uuid.UUID]*appointment.Appointment{}}
}

func (r *memApptRepo) Create(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	c := *a
	r.byID[a.ID] = &c
	r.order = append(r.order, a.ID)
	return nil
}

func (r *memApptRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	c := *a
	return &c, nil
}

func (r *memApptRepo) ListActive(_ context.Context, doctorID uuid.UUID, date time.Time) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*appointment.Appointment
	for _, id := range r.order {
		a := r.byID[id]
		if a.DoctorID == doctorID && a.SlotDate.Equal(date) && a.IsActive() {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memApptRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*appointment.Appointment
	for _, id := range r.order {
		a := r.byID[id]
		if a.PatientID == patientID && a.IsActive() {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memApptRepo) UpdateStatus(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if stored.Status != appointment.StatusBooked {
		return appointment.ErrInvalidStatusTransition
	}
	stored.Status = a.Status
	stored.CancelledAt = a.CancelledAt
	stored.CancellationReason = a.CancellationReason
	stored.CompletedAt = a.CompletedAt
	return nil
}

func (r *memApptRepo) UpdateScoring(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if stored.Status != appointment.StatusBooked {
		return appointment.ErrInvalidStatusTransition
	}
	stored.Severity = a.Severity
	stored.SeverityScore = a.SeverityScore
	stored.IsEmergency = a.IsEmergency
	stored.SeverityOverridden = a.SeverityOverridden
	return nil
}

func (r *memApptRepo) SlotTaken(_ context.Context, doctorID uuid.UUID, date time.Time, slotTime string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.DoctorID == doctorID && a.SlotDate.Equal(date) && a.SlotTime == slotTime && a.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

type memDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*doctor.Doctor
}

func newMemDoctorRepo() *memDoctorRepo {
	return &memDoctorRepo{doctors: map[uuid.UUID]*doctor.Doctor{}}
}

func (r *memDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	c := *d
	return &c, nil
}

func (r *memDoctorRepo) Create(_ context.Context, d *doctor.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	c := *d
	r.doctors[d.ID] = &c
	return nil
}

func (r *memDoctorRepo) NextToken(_ context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return 0, doctor.ErrDoctorNotFound
	}
	d.TokenCounter++
	return d.TokenCounter, nil
}

type memProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*healthprofile.HealthProfile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: map[uuid.UUID]*healthprofile.HealthProfile{}}
}

func (r *memProfileRepo) GetByPatient(_ context.Context, patientID uuid.UUID) (*healthprofile.HealthProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[patientID]
	if !ok {
		return nil, healthprofile.ErrProfileNotFound
	}
	c := *p
	return &c, nil
}

func (r *memProfileRepo) Upsert(_ context.Context, p *healthprofile.HealthProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	r.profiles[p.PatientID] = &c
	return nil
}

type memAuditRepo struct{}

func (memAuditRepo) Create(context.Context, *domain.AuditLog) error { return nil }

// recordingNotifier captures dispatched events for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	updates  []*queue.Snapshot
	removals []uuid.UUID
}

func (n *recordingNotifier) QueueUpdated(snap *queue.Snapshot, _ *appointment.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, snap)
}

func (n *recordingNotifier) PatientRemoved(_, appointmentID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removals = append(n.removals, appointmentID)
}

func (n *recordingNotifier) removed(id uuid.UUID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range n.removals {
		if r == id {
			return true
		}
	}
	return false
}

type queueFixture struct {
	svc      *QueueService
	appts    *memApptRepo
	doctors  *memDoctorRepo
	profiles *memProfileRepo
	notifier *recordingNotifier
	doc      *doctor.Doctor
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()

	appts := newMemApptRepo()
	doctors := newMemDoctorRepo()
	profiles := newMemProfileRepo()
	notifier := &recordingNotifier{}
	log := zap.NewNop()

	doc := &doctor.Doctor{
		Name:                "Dr. Verma",
		Available:           true,
		AvgConsultationMins: 15,
		WorkingHours:        doctor.WorkingHours{StartHour: 0, EndHour: 24},
	}
	require.NoError(t, doctors.Create(context.Background(), doc))

	mat := queue.NewMaterializer(appts, profiles, doctors, 15, log)
	auditSvc := NewAuditService(memAuditRepo{}, log)
	t.Cleanup(auditSvc.Shutdown)

	svc := NewQueueService(appts, profiles, doctors, mat, notifier, auditSvc, 7, log)
	return &queueFixture{svc: svc, appts: appts, doctors: doctors, profiles: profiles, notifier: notifier, doc: doc}
}

func tomorrow() time.Time {
	return time.Now().UTC().AddDate(0, 0, 1)
}

func (f *queueFixture) book(t *testing.T, patientID uuid.UUID, slotTime string) *appointment.Appointment {
	t.Helper()
	apt, _, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		PatientID: patientID,
		DoctorID:  f.doc.ID,
		SlotDate:  tomorrow(),
		SlotTime:  slotTime,
	}, patientID, "patient", "127.0.0.1")
	require.NoError(t, err)
	return apt
}

func TestBookRoundTrip(t *testing.T) {
	f := newQueueFixture(t)
	patientID := uuid.New()

	apt, snap, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		PatientID: patientID,
		DoctorID:  f.doc.ID,
		SlotDate:  tomorrow(),
		SlotTime:  "10:00",
	}, patientID, "patient", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 1, apt.TokenNumber)
	assert.Equal(t, appointment.SeverityLow, apt.Severity)
	assert.Equal(t, 0, apt.QueuePosition)
	assert.Equal(t, "Now", apt.EstimatedWait)

	require.Len(t, snap.Entries, 1)
	assert.Equal(t, apt.ID, snap.Entries[0].ID)

	// The caller's own immediate read reflects the booking.
	got, err := f.svc.DoctorQueue(context.Background(), f.doc.ID, tomorrow())
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
}

func TestBookRejectsTakenSlot(t *testing.T) {
	f := newQueueFixture(t)
	f.book(t, uuid.New(), "10:00")

	_, _, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		PatientID: uuid.New(),
		DoctorID:  f.doc.ID,
		SlotDate:  tomorrow(),
		SlotTime:  "10:00",
	}, uuid.New(), "patient", "")
	assert.ErrorIs(t, err, appointment.ErrSlotNotAvailable)
}

func TestBookRejectsMalformedSlotTime(t *testing.T) {
	f := newQueueFixture(t)

	for _, slot := range []string{"25:00", "9:00", "10:60", "abc", ""} {
		_, _, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
			PatientID: uuid.New(),
			DoctorID:  f.doc.ID,
			SlotDate:  tomorrow(),
			SlotTime:  slot,
		}, uuid.New(), "patient", "")
		assert.ErrorIs(t, err, appointment.ErrInvalidSlotTime, "slot %q", slot)
	}
}

func TestBookRejectsUnavailableDoctor(t *testing.T) {
	f := newQueueFixture(t)
	f.doctors.doctors[f.doc.ID].Available = false

	_, _, err := f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
		PatientID: uuid.New(),
		DoctorID:  f.doc.ID,
		SlotDate:  tomorrow(),
		SlotTime:  "10:00",
	}, uuid.New(), "patient", "")
	assert.ErrorIs(t, err, doctor.ErrDoctorUnavailable)
}

func TestBookScoresFromStoredProfile(t *testing.T) {
	f := newQueueFixture(t)
	patientID := uuid.New()
	require.NoError(t, f.profiles.Upsert(context.Background(), &healthprofile.HealthProfile{
		PatientID:           patientID,
		PainLevel:           9,
		BreathingDifficulty: true,
		SymptomTags:         []string{"difficulty breathing"},
	}))

	apt := f.book(t, patientID, "10:00")
	assert.Greater(t, apt.SeverityScore, 0)
	assert.NotEqual(t, appointment.SeverityLow, apt.Severity)
}

func TestCompleteHeadPromotesNext(t *testing.T) {
	f := newQueueFixture(t)
	first := f.book(t, uuid.New(), "10:00")
	second := f.book(t, uuid.New(), "11:00")

	snap, err := f.svc.Complete(context.Background(), f.doc.ID, first.ID, f.doc.ID, "doctor", "")
	require.NoError(t, err)

	require.Len(t, snap.Entries, 1)
	assert.Equal(t, second.ID, snap.Entries[0].ID)
	assert.Equal(t, 0, snap.Entries[0].QueuePosition)
	assert.Equal(t, "Now", snap.Entries[0].EstimatedWait)
	assert.True(t, f.notifier.removed(first.ID))
}

func TestCompleteTerminalStateFails(t *testing.T) {
	f := newQueueFixture(t)
	apt := f.book(t, uuid.New(), "10:00")

	_, err := f.svc.Complete(context.Background(), f.doc.ID, apt.ID, f.doc.ID, "doctor", "")
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), f.doc.ID, apt.ID, f.doc.ID, "doctor", "")
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)

	_, err = f.svc.Cancel(context.Background(), f.doc.ID, apt.ID, "", f.doc.ID, "doctor", "")
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
}

func TestCancelRemovesFromQueue(t *testing.T) {
	f := newQueueFixture(t)
	patientID := uuid.New()
	apt := f.book(t, patientID, "10:00")
	keeper := f.book(t, uuid.New(), "11:00")

	snap, err := f.svc.Cancel(context.Background(), f.doc.ID, apt.ID, "cannot attend", patientID, "patient", "")
	require.NoError(t, err)

	require.Len(t, snap.Entries, 1)
	assert.Equal(t, keeper.ID, snap.Entries[0].ID)
	assert.True(t, f.notifier.removed(apt.ID))

	active, err := f.appts.ListActiveByPatient(context.Background(), patientID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCancelForeignAppointmentForbidden(t *testing.T) {
	f := newQueueFixture(t)
	apt := f.book(t, uuid.New(), "10:00")

	stranger := uuid.New()
	_, err := f.svc.Cancel(context.Background(), f.doc.ID, apt.ID, "", stranger, "patient", "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTransitionWrongDoctorNotFound(t *testing.T) {
	f := newQueueFixture(t)
	apt := f.book(t, uuid.New(), "10:00")

	_, err := f.svc.Complete(context.Background(), uuid.New(), apt.ID, f.doc.ID, "doctor", "")
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestReprioritizeReordersQueue(t *testing.T) {
	f := newQueueFixture(t)
	first := f.book(t, uuid.New(), "10:00")
	second := f.book(t, uuid.New(), "11:00")

	snap, err := f.svc.Reprioritize(context.Background(), second.ID,
		appointment.SeverityHigh, false, f.doc.ID, "doctor", "")
	require.NoError(t, err)

	require.Len(t, snap.Entries, 2)
	assert.Equal(t, second.ID, snap.Entries[0].ID)
	assert.Equal(t, first.ID, snap.Entries[1].ID)
	assert.GreaterOrEqual(t, snap.Entries[0].SeverityScore, 51)
}

func TestReprioritizeOverridesStoredProfile(t *testing.T) {
	f := newQueueFixture(t)

	// A stored profile that scores squarely into the Low band.
	patientID := uuid.New()
	require.NoError(t, f.profiles.Upsert(context.Background(), &healthprofile.HealthProfile{
		PatientID: patientID,
		PainLevel: 2,
	}))

	apt := f.book(t, patientID, "10:00")
	require.Equal(t, appointment.SeverityLow, apt.Severity)

	snap, err := f.svc.Reprioritize(context.Background(), apt.ID,
		appointment.SeverityHigh, false, f.doc.ID, "doctor", "")
	require.NoError(t, err)

	// The snapshot built inside Reprioritize must already carry the
	// override, not a rescore from the mild profile.
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, appointment.SeverityHigh, snap.Entries[0].Severity)
	assert.GreaterOrEqual(t, snap.Entries[0].SeverityScore, 51)

	// And so must every later materialization.
	got, err := f.svc.DoctorQueue(context.Background(), f.doc.ID, tomorrow())
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, appointment.SeverityHigh, got.Entries[0].Severity)
	assert.True(t, got.Entries[0].SeverityOverridden)
}

func TestBookEmergency(t *testing.T) {
	f := newQueueFixture(t)
	f.book(t, uuid.New(), "10:00")

	patientID := uuid.New()
	apt, snap, err := f.svc.BookEmergency(context.Background(), &appointment.EmergencyBookCommand{
		PatientID: patientID,
		DoctorID:  f.doc.ID,
		Symptoms:  []string{"severe bleeding"},
	}, patientID, "patient", "")
	require.NoError(t, err)

	assert.True(t, apt.IsEmergency)
	assert.Equal(t, appointment.SeverityEmergency, apt.Severity)
	assert.NotEmpty(t, apt.SlotTime)
	assert.Equal(t, 2, apt.TokenNumber)

	// The emergency leads whatever queue its slot landed in.
	require.NotEmpty(t, snap.Entries)
	assert.Equal(t, apt.ID, snap.Entries[0].ID)
	assert.Equal(t, 0, apt.QueuePosition)
}

func TestEmergencyOutranksEarlierLowBookings(t *testing.T) {
	f := newQueueFixture(t)

	// Fill the same day the emergency will land on, then verify ordering is
	// derived from severity, not slot time or arrival order.
	low := f.book(t, uuid.New(), "09:00")

	patientID := uuid.New()
	em, _, err := f.svc.BookEmergency(context.Background(), &appointment.EmergencyBookCommand{
		PatientID: patientID,
		DoctorID:  f.doc.ID,
	}, patientID, "patient", "")
	require.NoError(t, err)

	if em.SlotDate.Equal(low.SlotDate) {
		snap, err := f.svc.DoctorQueue(context.Background(), f.doc.ID, em.SlotDate)
		require.NoError(t, err)
		require.Len(t, snap.Entries, 2)
		assert.Equal(t, em.ID, snap.Entries[0].ID)
	}
}

func TestPatientStatus(t *testing.T) {
	f := newQueueFixture(t)
	patientID := uuid.New()
	f.book(t, uuid.New(), "08:00")
	apt := f.book(t, patientID, "09:00")

	statuses, err := f.svc.PatientStatus(context.Background(), patientID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	st := statuses[0]
	assert.Equal(t, apt.ID, st.AppointmentID)
	assert.Equal(t, "Dr. Verma", st.DoctorName)
	assert.Equal(t, 1, st.QueuePosition)
	assert.Equal(t, "15 min", st.EstimatedWait)
}

func TestStats(t *testing.T) {
	f := newQueueFixture(t)
	f.book(t, uuid.New(), "08:00")
	f.book(t, uuid.New(), "09:00")

	stats, err := f.svc.Stats(context.Background(), f.doc.ID, tomorrow())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalInQueue)
	assert.Equal(t, 2, stats.SeverityCounts[appointment.SeverityLow])
}

func TestConcurrentBookingsSerialize(t *testing.T) {
	f := newQueueFixture(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patientID := uuid.New()
			_, _, errs[i] = f.svc.Book(context.Background(), &appointment.BookAppointmentCommand{
				PatientID: patientID,
				DoctorID:  f.doc.ID,
				SlotDate:  tomorrow(),
				SlotTime:  fmt.Sprintf("10:%02d", i),
			}, patientID, "patient", "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "booking %d", i)
	}

	snap, err := f.svc.DoctorQueue(context.Background(), f.doc.ID, tomorrow())
	require.NoError(t, err)
	require.Len(t, snap.Entries, n)

	tokens := make(map[int]bool, n)
	for _, entry := range snap.Entries {
		assert.False(t, tokens[entry.TokenNumber], "token %d issued twice", entry.TokenNumber)
		tokens[entry.TokenNumber] = true
	}

	positions := make(map[int]bool, n)
	for _, entry := range snap.Entries {
		assert.False(t, positions[entry.QueuePosition])
		positions[entry.QueuePosition] = true
	}
}

func TestRacingCompleteAndCancelOneLoses(t *testing.T) {
	f := newQueueFixture(t)
	apt := f.book(t, uuid.New(), "10:00")

	// Park both mutations on the day lock so they start from the same
	// stale read, then release and let them race.
	release := f.svc.locks.acquire(f.doc.ID, dayOf(apt.SlotDate))

	var wg sync.WaitGroup
	var completeErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, completeErr = f.svc.Complete(context.Background(), f.doc.ID, apt.ID, f.doc.ID, "doctor", "")
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = f.svc.Cancel(context.Background(), f.doc.ID, apt.ID, "no show", f.doc.ID, "doctor", "")
	}()

	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	failures := 0
	for _, err := range []error{completeErr, cancelErr} {
		if err != nil {
			assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
			failures++
		}
	}
	require.Equal(t, 1, failures, "exactly one of the racing transitions must lose")

	stored, err := f.appts.GetByID(context.Background(), apt.ID)
	require.NoError(t, err)
	if completeErr == nil {
		assert.Equal(t, appointment.StatusCompleted, stored.Status)
	} else {
		assert.Equal(t, appointment.StatusCancelled, stored.Status)
	}
}

func TestDayLocksEvictOnLastRelease(t *testing.T) {
	var l dayLocks
	day := time.Now().UTC()

	releaseA := l.acquire(uuid.New(), day)
	releaseB := l.acquire(uuid.New(), day)

	l.mu.Lock()
	assert.Len(t, l.locks, 2)
	l.mu.Unlock()

	releaseA()
	releaseB()

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}

func TestDayLocksKeepContendedEntryAlive(t *testing.T) {
	var l dayLocks
	docID := uuid.New()
	day := time.Now().UTC()

	release := l.acquire(docID, day)

	acquired := make(chan func(), 1)
	go func() { acquired <- l.acquire(docID, day) }()

	// The waiter has registered its reference; releasing the holder must
	// hand the same entry over, not delete it out from under the waiter.
	time.Sleep(20 * time.Millisecond)
	release()

	releaseWaiter := <-acquired
	releaseWaiter()

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}
