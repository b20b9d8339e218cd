package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListActive returns all non-terminal appointments for one doctor-day.
	// Terminal appointments never reappear here.
	ListActive(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)

	// ListActiveByPatient returns a patient's non-terminal appointments
	// across all doctors and dates.
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)

	// UpdateStatus persists a lifecycle transition already applied to a.
	// The stored row must still be booked; returns
	// ErrInvalidStatusTransition when it has already reached a terminal
	// state.
	UpdateStatus(ctx context.Context, a *Appointment) error

	// UpdateScoring persists a recomputed severity score, category, and
	// override flag. Same booked-row requirement as UpdateStatus.
	UpdateScoring(ctx context.Context, a *Appointment) error

	// SlotTaken reports whether an active appointment already occupies the
	// given doctor/date/time slot.
	SlotTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, slotTime string) (bool, error)
}
