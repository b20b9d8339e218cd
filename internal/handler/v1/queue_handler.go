package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/metrics"
)

type QueueHandler struct {
	queueSvc  *service.QueueService
	collector *metrics.Collector
}

func NewQueueHandler(queueSvc *service.QueueService, collector *metrics.Collector) *QueueHandler {
	return &QueueHandler{queueSvc: queueSvc, collector: collector}
}

type doctorQueueRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	Date     string    `json:"date"` // YYYY-MM-DD, defaults to today
}

type bookRequest struct {
	DoctorID        uuid.UUID                   `json:"doctor_id" binding:"required"`
	PatientID       uuid.UUID                   `json:"patient_id"`
	SlotDate        string                      `json:"slot_date" binding:"required"`
	SlotTime        string                      `json:"slot_time" binding:"required"`
	Severity        string                      `json:"severity"`
	Symptoms        []string                    `json:"symptoms"`
	SymptomDuration string                      `json:"symptom_duration"`
	Vitals          *appointment.VitalsSnapshot `json:"vitals"`
}

type emergencyBookRequest struct {
	DoctorID        uuid.UUID                   `json:"doctor_id" binding:"required"`
	PatientID       uuid.UUID                   `json:"patient_id"`
	Symptoms        []string                    `json:"symptoms"`
	SymptomDuration string                      `json:"symptom_duration"`
	Vitals          *appointment.VitalsSnapshot `json:"vitals"`
}

type transitionRequest struct {
	DoctorID      uuid.UUID `json:"doctor_id" binding:"required"`
	AppointmentID uuid.UUID `json:"appointment_id" binding:"required"`
	Reason        string    `json:"reason"`
}

type priorityRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id" binding:"required"`
	Severity      string    `json:"severity" binding:"required"`
	IsEmergency   bool      `json:"is_emergency"`
}

// DoctorQueue returns the materialized queue for one doctor-day.
func (h *QueueHandler) DoctorQueue(c *gin.Context) {
	var req doctorQueueRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := parseDate(c, req.Date)
	if !ok {
		return
	}

	snap, err := h.queueSvc.DoctorQueue(c.Request.Context(), req.DoctorID, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, snap)
}

// PatientStatus returns the caller's live position in every queue they sit in.
func (h *QueueHandler) PatientStatus(c *gin.Context) {
	claims := callerClaims(c)

	patientID := claims.UserID
	var req struct {
		PatientID uuid.UUID `json:"patient_id"`
	}
	// Doctors and admins may query any patient; patients only themselves.
	if err := c.ShouldBindJSON(&req); err == nil && req.PatientID != uuid.Nil {
		if claims.Role == domain.RolePatient && req.PatientID != claims.UserID {
			respondError(c, http.StatusForbidden, "access denied")
			return
		}
		patientID = req.PatientID
	}

	statuses, err := h.queueSvc.PatientStatus(c.Request.Context(), patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, statuses)
}

// Book handles the normal booking path.
func (h *QueueHandler) Book(c *gin.Context) {
	var req bookRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := callerClaims(c)

	patientID := req.PatientID
	if claims.Role == domain.RolePatient || patientID == uuid.Nil {
		patientID = claims.UserID
	}

	slotDate, err := time.Parse(time.DateOnly, req.SlotDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid slot_date: expected YYYY-MM-DD")
		return
	}

	apt, snap, err := h.queueSvc.Book(c.Request.Context(), &appointment.BookAppointmentCommand{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		SlotDate:        slotDate,
		SlotTime:        req.SlotTime,
		Severity:        appointment.Severity(req.Severity),
		Symptoms:        req.Symptoms,
		SymptomDuration: req.SymptomDuration,
		Vitals:          req.Vitals,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.BookingsTotal.WithLabelValues(string(apt.Severity)).Inc()
	respondCreated(c, gin.H{"appointment": apt, "queue": snap.Entries})
}

// BookEmergency handles the emergency fast path.
func (h *QueueHandler) BookEmergency(c *gin.Context) {
	var req emergencyBookRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := callerClaims(c)

	patientID := req.PatientID
	if claims.Role == domain.RolePatient || patientID == uuid.Nil {
		patientID = claims.UserID
	}

	apt, snap, err := h.queueSvc.BookEmergency(c.Request.Context(), &appointment.EmergencyBookCommand{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		Symptoms:        req.Symptoms,
		SymptomDuration: req.SymptomDuration,
		Vitals:          req.Vitals,
	}, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.BookingsTotal.WithLabelValues(string(apt.Severity)).Inc()
	h.collector.EmergencyBookingsTotal.Inc()
	respondCreated(c, gin.H{"appointment": apt, "queue": snap.Entries})
}

// Complete marks the appointment done. Doctor console action.
func (h *QueueHandler) Complete(c *gin.Context) {
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := callerClaims(c)

	snap, err := h.queueSvc.Complete(c.Request.Context(), req.DoctorID, req.AppointmentID,
		claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"queue": snap.Entries})
}

// Cancel removes an appointment from the queue.
func (h *QueueHandler) Cancel(c *gin.Context) {
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := callerClaims(c)

	snap, err := h.queueSvc.Cancel(c.Request.Context(), req.DoctorID, req.AppointmentID, req.Reason,
		claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"queue": snap.Entries})
}

// Reprioritize overrides an appointment's severity. Doctor console action.
func (h *QueueHandler) Reprioritize(c *gin.Context) {
	var req priorityRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := callerClaims(c)

	snap, err := h.queueSvc.Reprioritize(c.Request.Context(), req.AppointmentID,
		appointment.Severity(req.Severity), req.IsEmergency,
		claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"queue": snap.Entries})
}

// Stats returns queue statistics for one doctor-day.
func (h *QueueHandler) Stats(c *gin.Context) {
	var req doctorQueueRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := parseDate(c, req.Date)
	if !ok {
		return
	}

	stats, err := h.queueSvc.Stats(c.Request.Context(), req.DoctorID, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, stats)
}

func parseDate(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now().UTC(), true
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
