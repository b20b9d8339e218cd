package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/queue"
)

// IntakeService owns health-profile submissions. Profiles are created on the
// first intake and updated in place afterwards; an update re-scores every
// active appointment queue the patient is part of, since severity derives
// from the profile.
type IntakeService struct {
	profiles healthprofile.Repository
	queueSvc *QueueService
	auditSvc *AuditService
	log      *zap.Logger
}

func NewIntakeService(
	profiles healthprofile.Repository,
	queueSvc *QueueService,
	auditSvc *AuditService,
	log *zap.Logger,
) *IntakeService {
	return &IntakeService{profiles: profiles, queueSvc: queueSvc, auditSvc: auditSvc, log: log}
}

// SubmitIntake validates and upserts the patient's health profile, returning
// the freshly computed severity score and category. Patients may only submit
// for themselves.
func (s *IntakeService) SubmitIntake(
	ctx context.Context,
	profile *healthprofile.HealthProfile,
	callerID uuid.UUID,
	callerRole string,
	ip string,
) (int, string, error) {
	if callerRole == "patient" && profile.PatientID != callerID {
		return 0, "", ErrForbidden
	}

	if fields := profile.Validate(); len(fields) > 0 {
		return 0, "", &ValidationError{Fields: fields}
	}

	if existing, err := s.profiles.GetByPatient(ctx, profile.PatientID); err == nil {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, healthprofile.ErrProfileNotFound) {
		return 0, "", fmt.Errorf("loading existing profile: %w", err)
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		s.log.Error("failed to upsert health profile", zap.Error(err))
		return 0, "", fmt.Errorf("saving health profile: %w", err)
	}

	score, category := queue.Score(profile, nil)

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: callerRole,
		Action: "update", ResourceType: "health_profile", ResourceID: profile.PatientID.String(),
		IPAddress: ip,
	})

	// Severity feeds the queue order, so a profile change must surface in
	// every queue the patient currently sits in.
	s.refreshActiveQueues(ctx, profile.PatientID)

	return score, string(category), nil
}

// Profile returns the stored profile for a patient. Patients may only read
// their own.
func (s *IntakeService) Profile(ctx context.Context, patientID, callerID uuid.UUID, callerRole string) (*healthprofile.HealthProfile, error) {
	if callerRole == "patient" && patientID != callerID {
		return nil, ErrForbidden
	}
	return s.profiles.GetByPatient(ctx, patientID)
}

func (s *IntakeService) refreshActiveQueues(ctx context.Context, patientID uuid.UUID) {
	active, err := s.queueSvc.appts.ListActiveByPatient(ctx, patientID)
	if err != nil {
		s.log.Warn("could not refresh queues after intake", zap.Error(err))
		return
	}

	seen := make(map[string]struct{})
	for _, apt := range active {
		key := apt.DoctorID.String() + "|" + dayOf(apt.SlotDate).Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		snap, err := s.queueSvc.mat.Materialize(ctx, apt.DoctorID, dayOf(apt.SlotDate))
		if err != nil {
			s.log.Warn("queue refresh failed after intake",
				zap.String("doctor_id", apt.DoctorID.String()),
				zap.Error(err),
			)
			continue
		}
		if s.queueSvc.notifier != nil {
			s.queueSvc.notifier.QueueUpdated(snap, nil)
		}
	}
}
