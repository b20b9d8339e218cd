package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the caller role supplied by the identity layer. Token issuance
// lives outside this service; the queue core only consumes validated claims.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Claims is the authenticated identity attached to every request.
type Claims struct {
	UserID uuid.UUID `json:"sub"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionUpdate AuditAction = "update"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	UserRole  Role      `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID string `gorm:"column:request_id;type:varchar(50);index"`
	Changes   string `gorm:"column:changes;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}
