package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
)

type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}
