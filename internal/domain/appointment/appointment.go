package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the clinical urgency category derived from the 0-100 score.
type Severity string

const (
	SeverityLow       Severity = "Low"
	SeverityMedium    Severity = "Medium"
	SeverityHigh      Severity = "High"
	SeverityEmergency Severity = "Emergency"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityEmergency:
		return true
	}
	return false
}

// Rank orders severities for queue comparison: Emergency > High > Medium > Low.
func (s Severity) Rank() int {
	switch s {
	case SeverityEmergency:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// State transitions possibilities:
//
//	booked → completed
//	booked → cancelled
type Status string

const (
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// VitalsSnapshot is the appointment-time vitals capture, distinct from the
// patient's stored health profile. Pointer fields distinguish "not recorded"
// from a recorded zero.
type VitalsSnapshot struct {
	SystolicBP  *int     `json:"systolic_bp,omitempty"`
	DiastolicBP *int     `json:"diastolic_bp,omitempty"`
	HeartRate   *int     `json:"heart_rate,omitempty"`
	SpO2        *int     `json:"spo2,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"` // °F
	SugarLevel  *int     `json:"sugar_level,omitempty"`  // mg/dL
}

type Appointment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index"`

	SlotDate time.Time `gorm:"column:slot_date;type:date;not null;index"`
	SlotTime string    `gorm:"column:slot_time;type:varchar(5);not null"` // "15:04"

	// Arrival order, monotonically increasing per doctor. Assigned at booking,
	// never reused. Final tie-break in queue ordering.
	TokenNumber int `gorm:"column:token_number;not null"`

	Severity      Severity `gorm:"column:severity;type:varchar(10);not null;default:'Low';index"`
	SeverityScore int      `gorm:"column:severity_score;not null;default:0"`
	IsEmergency   bool     `gorm:"column:is_emergency;not null;default:false"`

	// Set by a doctor's explicit priority override. While set, the stored
	// severity and score are authoritative and materialization does not
	// rescore this appointment from health data.
	SeverityOverridden bool `gorm:"column:severity_overridden;not null;default:false"`

	Status Status `gorm:"column:status;type:varchar(10);not null;default:'booked';index"`

	// Appointment-time intake. Overrides the stored health profile when present.
	Symptoms        []string        `gorm:"column:symptoms;serializer:json"`
	SymptomDuration string          `gorm:"column:symptom_duration;type:varchar(50)"`
	Vitals          *VitalsSnapshot `gorm:"column:vitals;serializer:json"`
	WoundImageURL   string          `gorm:"column:wound_image_url;type:text"`

	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`

	// Derived queue fields. Recomputed on every materialization; when written
	// back they are a cache only, never authoritative input.
	QueuePosition int    `gorm:"-" json:"queue_position"`
	EstimatedWait string `gorm:"-" json:"estimated_wait"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

func (a *Appointment) IsActive() bool {
	return a.Status == StatusBooked && a.DeletedAt == nil
}

func (a *Appointment) CanTransitionTo(newStatus Status) bool {
	if a.Status != StatusBooked {
		return false
	}
	return newStatus == StatusCompleted || newStatus == StatusCancelled
}

func (a *Appointment) Cancel(reason string) error {
	if !a.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = reason
	return nil
}

func (a *Appointment) Complete() error {
	if !a.CanTransitionTo(StatusCompleted) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCompleted
	a.CompletedAt = &now
	return nil
}

type BookAppointmentCommand struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	SlotDate        time.Time
	SlotTime        string
	Severity        Severity // defaulted to Low when empty
	Symptoms        []string
	SymptomDuration string
	Vitals          *VitalsSnapshot
}

type EmergencyBookCommand struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Symptoms        []string
	SymptomDuration string
	Vitals          *VitalsSnapshot
}
