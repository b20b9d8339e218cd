package healthprofile

import (
	"time"

	"github.com/google/uuid"
)

type DurationUnit string

const (
	UnitMinutes DurationUnit = "minutes"
	UnitHours   DurationUnit = "hours"
	UnitDays    DurationUnit = "days"
	UnitWeeks   DurationUnit = "weeks"
)

func (u DurationUnit) IsValid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays, UnitWeeks:
		return true
	}
	return false
}

// SymptomDuration is how long the presenting symptoms have lasted.
type SymptomDuration struct {
	Value int          `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

// Vitals holds the most recent recorded vital signs. All fields are optional;
// a nil pointer means "not recorded", which is distinct from a recorded zero.
type Vitals struct {
	SystolicBP  *int     `json:"systolic_bp,omitempty"`
	DiastolicBP *int     `json:"diastolic_bp,omitempty"`
	HeartRate   *int     `json:"heart_rate,omitempty"`
	SpO2        *int     `json:"spo2,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"` // °F
	SugarLevel  *int     `json:"sugar_level,omitempty"` // mg/dL
}

// Conditions are the chronic disease flags collected at intake.
type Conditions struct {
	Diabetes      bool `json:"diabetes"`
	Hypertension  bool `json:"hypertension"`
	Asthma        bool `json:"asthma"`
	HeartDisease  bool `json:"heart_disease"`
	KidneyDisease bool `json:"kidney_disease"`
	Cancer        bool `json:"cancer"`
	StrokeHistory bool `json:"stroke_history"`
}

// Medications are the high-risk medication flags.
type Medications struct {
	BloodThinners bool `json:"blood_thinners"`
	Insulin       bool `json:"insulin"`
	Steroids      bool `json:"steroids"`
	Chemotherapy  bool `json:"chemotherapy"`
}

// HealthProfile is the per-patient intake record. Created on first
// submission, updated in place afterwards, never deleted.
type HealthProfile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;uniqueIndex"`

	Age             int  `gorm:"column:age;not null;default:0"`
	PregnancyStatus bool `gorm:"column:pregnancy_status;not null;default:false"`

	SymptomTags []string        `gorm:"column:symptom_tags;serializer:json"`
	PainLevel   int             `gorm:"column:pain_level;not null;default:0"` // 0-10
	Duration    SymptomDuration `gorm:"column:duration;serializer:json"`

	// Onset flags
	Sudden              bool `gorm:"column:sudden;not null;default:false"`
	Worsening           bool `gorm:"column:worsening;not null;default:false"`
	Fever               bool `gorm:"column:fever;not null;default:false"`
	Bleeding            bool `gorm:"column:bleeding;not null;default:false"`
	BreathingDifficulty bool `gorm:"column:breathing_difficulty;not null;default:false"`

	Vitals      Vitals      `gorm:"column:vitals;serializer:json"`
	Conditions  Conditions  `gorm:"column:conditions;serializer:json"`
	Medications Medications `gorm:"column:medications;serializer:json"`

	Surgeries              []string `gorm:"column:surgeries;serializer:json"`
	Allergies              []string `gorm:"column:allergies;serializer:json"`
	PregnancyComplications []string `gorm:"column:pregnancy_complications;serializer:json"`
	RecentHospitalization  bool     `gorm:"column:recent_hospitalization;not null;default:false"` // within 6 months
	ICUHistory             bool     `gorm:"column:icu_history;not null;default:false"`
}

func (HealthProfile) TableName() string {
	return "clinical.health_profiles"
}

// Physiological plausibility bands. Values outside these ranges are rejected
// at intake; a stored vital is therefore always plausible.
type vitalBand struct {
	field    string
	min, max float64
}

var vitalBands = []vitalBand{
	{"systolic_bp", 50, 300},
	{"diastolic_bp", 30, 200},
	{"heart_rate", 20, 300},
	{"spo2", 50, 100},
	{"temperature", 90, 110},
	{"sugar_level", 20, 1000},
}

// Validate checks intake constraints and returns the offending field names.
func (p *HealthProfile) Validate() []string {
	var fields []string

	if p.PainLevel < 0 || p.PainLevel > 10 {
		fields = append(fields, "pain_level must be between 0 and 10")
	}
	if p.Age < 0 || p.Age > 130 {
		fields = append(fields, "age must be between 0 and 130")
	}
	if p.Duration.Value < 0 {
		fields = append(fields, "duration.value must not be negative")
	}
	if p.Duration.Unit != "" && !p.Duration.Unit.IsValid() {
		fields = append(fields, "duration.unit must be one of minutes, hours, days, weeks")
	}

	checks := []struct {
		band  vitalBand
		value *float64
	}{
		{vitalBands[0], intPtrToFloat(p.Vitals.SystolicBP)},
		{vitalBands[1], intPtrToFloat(p.Vitals.DiastolicBP)},
		{vitalBands[2], intPtrToFloat(p.Vitals.HeartRate)},
		{vitalBands[3], intPtrToFloat(p.Vitals.SpO2)},
		{vitalBands[4], p.Vitals.Temperature},
		{vitalBands[5], intPtrToFloat(p.Vitals.SugarLevel)},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		if *c.value < c.band.min || *c.value > c.band.max {
			fields = append(fields, c.band.field+" is outside the physiologically plausible range")
		}
	}

	return fields
}

func intPtrToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
