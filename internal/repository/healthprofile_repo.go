package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
)

type HealthProfileRepo struct {
	db *gorm.DB
}

func NewHealthProfileRepo(db *gorm.DB) *HealthProfileRepo {
	return &HealthProfileRepo{db: db}
}

func (r *HealthProfileRepo) GetByPatient(ctx context.Context, patientID uuid.UUID) (*healthprofile.HealthProfile, error) {
	var p healthprofile.HealthProfile
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, healthprofile.ErrProfileNotFound
		}
		return nil, fmt.Errorf("fetching health profile: %w", err)
	}
	return &p, nil
}

// Upsert keys on patient_id so concurrent first-time intakes collapse to a
// single row.
func (r *HealthProfileRepo) Upsert(ctx context.Context, p *healthprofile.HealthProfile) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "patient_id"}},
			UpdateAll: true,
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("upserting health profile: %w", err)
	}
	return nil
}
