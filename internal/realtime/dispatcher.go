package realtime

import (
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/queue"
)

// QueueUpdatePayload is the doctor-room broadcast after any mutation:
// the full re-materialized queue plus the appointment that changed.
// Clients treat each payload as authoritative-replace-in-full, which keeps
// out-of-order delivery of superseded snapshots harmless.
type QueueUpdatePayload struct {
	DoctorID    uuid.UUID                  `json:"doc_id"`
	Appointment *appointment.Appointment   `json:"appointment,omitempty"`
	Queue       []*appointment.Appointment `json:"queue"`
	GeneratedAt int64                      `json:"generated_at"`
}

// PositionPayload is the per-patient status update.
type PositionPayload struct {
	AppointmentID uuid.UUID            `json:"appointment_id"`
	DoctorID      uuid.UUID            `json:"doc_id"`
	QueuePosition int                  `json:"queue_position"`
	EstimatedWait string               `json:"estimated_wait"`
	PriorityScore int                  `json:"priority_score"`
	Severity      appointment.Severity `json:"severity"`
	TokenNumber   int                  `json:"token_number"`
}

// RemovalPayload announces that an appointment left the queue.
type RemovalPayload struct {
	DoctorID      uuid.UUID `json:"doc_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
}

// Dispatcher fans queue changes out to subscribed sessions.
type Dispatcher struct {
	hub *Hub
}

func NewDispatcher(hub *Hub) *Dispatcher {
	return &Dispatcher{hub: hub}
}

// QueueUpdated broadcasts the new snapshot to the doctor room and a status
// update to every active appointment's patient room. changed may be nil when
// the mutation was a removal.
func (d *Dispatcher) QueueUpdated(snap *queue.Snapshot, changed *appointment.Appointment) {
	d.hub.Broadcast(DoctorRoom(snap.DoctorID), Event{
		Type: EventQueueUpdated,
		Data: QueueUpdatePayload{
			DoctorID:    snap.DoctorID,
			Appointment: changed,
			Queue:       snap.Entries,
			GeneratedAt: snap.GeneratedAt.UnixMilli(),
		},
	})

	for _, apt := range snap.Entries {
		d.hub.Broadcast(PatientRoom(apt.ID), Event{
			Type: EventQueuePosition,
			Data: PositionPayload{
				AppointmentID: apt.ID,
				DoctorID:      snap.DoctorID,
				QueuePosition: apt.QueuePosition,
				EstimatedWait: apt.EstimatedWait,
				PriorityScore: apt.SeverityScore,
				Severity:      apt.Severity,
				TokenNumber:   apt.TokenNumber,
			},
		})
	}
}

// PatientRemoved notifies the doctor room and the removed appointment's own
// room after a completion or cancellation.
func (d *Dispatcher) PatientRemoved(doctorID, appointmentID uuid.UUID) {
	payload := RemovalPayload{DoctorID: doctorID, AppointmentID: appointmentID}
	d.hub.Broadcast(DoctorRoom(doctorID), Event{Type: EventPatientRemoved, Data: payload})
	d.hub.Broadcast(PatientRoom(appointmentID), Event{Type: EventPatientRemoved, Data: payload})
}
