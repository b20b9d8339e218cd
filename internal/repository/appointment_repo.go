package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
)

type AppointmentRepo struct {
	db *gorm.DB
}

func NewAppointmentRepo(db *gorm.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

func (r *AppointmentRepo) Create(ctx context.Context, a *appointment.Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appointment.ErrSlotNotAvailable
		}
		return fmt.Errorf("inserting appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("fetching appointment: %w", err)
	}
	return &a, nil
}

func (r *AppointmentRepo) ListActive(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*appointment.Appointment, error) {
	var appts []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND slot_date = ? AND status = ? AND deleted_at IS NULL",
			doctorID, date.Format(time.DateOnly), appointment.StatusBooked).
		Order("token_number ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("listing active appointments: %w", err)
	}
	return appts, nil
}

func (r *AppointmentRepo) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	var appts []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND status = ? AND deleted_at IS NULL",
			patientID, appointment.StatusBooked).
		Order("slot_date ASC, slot_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("listing patient appointments: %w", err)
	}
	return appts, nil
}

func (r *AppointmentRepo) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	// Guarding on the booked status makes the terminal transition atomic:
	// a row some other request already completed or cancelled matches zero
	// rows instead of being silently overwritten.
	result := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", a.ID, appointment.StatusBooked).
		Updates(map[string]any{
			"status":              a.Status,
			"cancelled_at":        a.CancelledAt,
			"cancellation_reason": a.CancellationReason,
			"completed_at":        a.CompletedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("updating appointment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appointment.ErrInvalidStatusTransition
	}
	return nil
}

func (r *AppointmentRepo) UpdateScoring(ctx context.Context, a *appointment.Appointment) error {
	result := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", a.ID, appointment.StatusBooked).
		Updates(map[string]any{
			"severity":            a.Severity,
			"severity_score":      a.SeverityScore,
			"is_emergency":        a.IsEmergency,
			"severity_overridden": a.SeverityOverridden,
		})
	if result.Error != nil {
		return fmt.Errorf("updating appointment scoring: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appointment.ErrInvalidStatusTransition
	}
	return nil
}

func (r *AppointmentRepo) SlotTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, slotTime string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("doctor_id = ? AND slot_date = ? AND slot_time = ? AND status = ? AND deleted_at IS NULL",
			doctorID, date.Format(time.DateOnly), slotTime, appointment.StatusBooked).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking slot: %w", err)
	}
	return count > 0, nil
}
