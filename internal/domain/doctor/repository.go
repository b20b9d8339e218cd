package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Create(ctx context.Context, d *Doctor) error

	// NextToken atomically increments and returns the doctor's arrival token
	// counter.
	NextToken(ctx context.Context, id uuid.UUID) (int, error)
}
