package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/doctor"
)

type DoctorRepo struct {
	db *gorm.DB
}

func NewDoctorRepo(db *gorm.DB) *DoctorRepo {
	return &DoctorRepo{db: db}
}

func (r *DoctorRepo) GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	var d doctor.Doctor
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, doctor.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("fetching doctor: %w", err)
	}
	return &d, nil
}

func (r *DoctorRepo) Create(ctx context.Context, d *doctor.Doctor) error {
	if !d.WorkingHours.IsValid() && (d.WorkingHours != doctor.WorkingHours{}) {
		return doctor.ErrInvalidWorkingHours
	}
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("inserting doctor: %w", err)
	}
	return nil
}

// NextToken increments the doctor's token counter in a single statement so
// concurrent bookings never observe the same token.
func (r *DoctorRepo) NextToken(ctx context.Context, id uuid.UUID) (int, error) {
	var token int
	err := r.db.WithContext(ctx).
		Raw(`UPDATE clinical.doctors
		     SET token_counter = token_counter + 1, updated_at = NOW()
		     WHERE id = ? AND deleted_at IS NULL
		     RETURNING token_counter`, id).
		Scan(&token).Error
	if err != nil {
		return 0, fmt.Errorf("incrementing token counter: %w", err)
	}
	if token == 0 {
		return 0, doctor.ErrDoctorNotFound
	}
	return token, nil
}
