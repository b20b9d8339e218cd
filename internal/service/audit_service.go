package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

type AuditService struct {
	repo    AuditRepository
	log     *zap.Logger
	entries chan *domain.AuditLog
	done    chan struct{}

	// Observability hooks. Optional.
	onEnqueue func()
	onDrop    func()
}

const auditBufferSize = 10_000

func NewAuditService(repo AuditRepository, log *zap.Logger) *AuditService {
	svc := &AuditService{
		repo:    repo,
		log:     log,
		entries: make(chan *domain.AuditLog, auditBufferSize),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// OnEnqueue registers a callback invoked for every accepted entry.
func (s *AuditService) OnEnqueue(fn func()) { s.onEnqueue = fn }

// OnDrop registers a callback invoked whenever a full buffer drops an entry.
func (s *AuditService) OnDrop(fn func()) { s.onDrop = fn }

// LogAsync enqueues an audit entry for async persistence.
// If the buffer is full, the entry is dropped and a warning is emitted.
func (s *AuditService) LogAsync(ctx context.Context, entry AuditEntry) {
	al := &domain.AuditLog{
		UserID:       entry.UserID,
		UserRole:     domain.Role(entry.UserRole),
		Action:       domain.AuditAction(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		Changes:      entry.Changes,
	}

	select {
	case s.entries <- al:
		if s.onEnqueue != nil {
			s.onEnqueue()
		}
	default:
		if s.onDrop != nil {
			s.onDrop()
		}
		s.log.Warn("audit log buffer full, dropping entry",
			zap.String("action", entry.Action),
			zap.String("resource", entry.ResourceType),
		)
	}
}

func (s *AuditService) Shutdown() {
	close(s.entries)
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("audit service shutdown timed out; some entries may be lost")
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Error("failed to persist audit log", zap.Error(err))
		}
		cancel()
	}
}
