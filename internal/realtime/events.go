package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Server → client event types.
const (
	EventQueueUpdated   = "queue_updated"
	EventQueuePosition  = "queue_position"
	EventPatientRemoved = "patient_removed"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
)

// Client → server message types.
const (
	MsgJoinDoctorQueue  = "join_doctor_queue"
	MsgJoinPatientQueue = "join_patient_queue"
)

// Event is the wire envelope for server pushes. Delivery is best-effort,
// at-most-once: clients recover from missed pushes by re-fetching the full
// snapshot over HTTP (push for latency, pull for correctness).
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ClientMessage is an inbound subscription request on the event channel.
type ClientMessage struct {
	Type          string    `json:"type"`
	DoctorID      uuid.UUID `json:"doctor_id,omitempty"`
	AppointmentID uuid.UUID `json:"appointment_id,omitempty"`
}

func (e Event) marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DoctorRoom is the subscription key for a doctor's full-queue feed.
func DoctorRoom(doctorID uuid.UUID) string {
	return "doctor:" + doctorID.String()
}

// PatientRoom is the subscription key for one appointment's status feed.
func PatientRoom(appointmentID uuid.UUID) string {
	return "patient:" + appointmentID.String()
}
