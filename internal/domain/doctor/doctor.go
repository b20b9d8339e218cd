package doctor

import (
	"time"

	"github.com/google/uuid"
)

// WorkingHours is the daily consultation window, hours in [0,24).
type WorkingHours struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

func (w WorkingHours) IsValid() bool {
	return w.StartHour >= 0 && w.EndHour <= 24 && w.StartHour < w.EndHour
}

type Doctor struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	Name      string `gorm:"column:name;type:varchar(200);not null"`
	Specialty string `gorm:"column:specialty;type:varchar(100)"`
	Available bool   `gorm:"column:available;not null;default:true"`

	// Average consultation duration used for wait estimation.
	// Valid range [5,60]; readers fall back to the configured default when
	// the stored value is missing or out of range.
	AvgConsultationMins int `gorm:"column:avg_consultation_mins;not null;default:15"`

	WorkingHours WorkingHours `gorm:"column:working_hours;serializer:json"`

	// Last issued arrival token. Monotonic per doctor, incremented on booking.
	TokenCounter int `gorm:"column:token_counter;not null;default:0"`
}

func (Doctor) TableName() string {
	return "clinical.doctors"
}

// ConsultationMins returns the configured average consultation time, clamped
// to the supported range, or def when unset.
func (d *Doctor) ConsultationMins(def int) int {
	if d.AvgConsultationMins < 5 || d.AvgConsultationMins > 60 {
		return def
	}
	return d.AvgConsultationMins
}

// Hours returns the working window, defaulting to 10:00-20:00 when the stored
// range is unusable.
func (d *Doctor) Hours() WorkingHours {
	if !d.WorkingHours.IsValid() {
		return WorkingHours{StartHour: 10, EndHour: 20}
	}
	return d.WorkingHours
}
