package healthprofile

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// GetByPatient returns ErrProfileNotFound when the patient has never
	// submitted an intake.
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*HealthProfile, error)

	// Upsert creates the profile on first intake and updates it in place
	// afterwards. Profiles are never deleted.
	Upsert(ctx context.Context, p *HealthProfile) error
}
