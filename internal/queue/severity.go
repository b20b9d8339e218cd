// Package queue implements the patient priority queue core: severity
// scoring, priority ordering, wait estimation, and queue materialization.
// Everything except the materializer is pure computation over data handed in.
package queue

import (
	"math"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
)

// Category weights. Each category sub-score is clamped to 100 before its
// weight is applied, so no single category can exceed its share of the total.
const (
	weightSeverity = 0.35
	weightChronic  = 0.20
	weightSymptom  = 0.20
	weightAge      = 0.10
	weightVitals   = 0.10
	weightHistory  = 0.05
)

// Category boundaries on the 0-100 score.
const (
	emergencyThreshold = 76
	highThreshold      = 51
	mediumThreshold    = 26
)

// Symptom tags that indicate a potentially life-threatening presentation.
var criticalSymptoms = []string{
	"chest pain", "heart attack", "stroke", "seizure",
	"unconscious", "severe bleeding", "head injury",
	"difficulty breathing", "choking", "severe burn",
}

// Intake is the appointment-time health data. Fields set here override the
// corresponding fields of the stored profile; nil/empty fields fall back.
type Intake struct {
	Symptoms []string
	Duration *healthprofile.SymptomDuration
	Vitals   *appointment.VitalsSnapshot
}

// Score computes the 0-100 severity score and category for a patient.
// Both arguments may be nil or partially populated; missing fields contribute
// zero and never cause failure. Implausible vital values (outside the intake
// validation bands) are treated as absent rather than scored, so one
// garbage reading cannot dominate the queue.
// Deterministic: identical inputs always yield the identical result.
func Score(profile *healthprofile.HealthProfile, intake *Intake) (int, appointment.Severity) {
	in := effectiveInputs(profile, intake)

	total := clamp100(severitySubScore(in))*weightSeverity +
		clamp100(chronicSubScore(profile))*weightChronic +
		clamp100(symptomSubScore(in))*weightSymptom +
		clamp100(ageSubScore(profile))*weightAge +
		clamp100(vitalsSubScore(in))*weightVitals +
		clamp100(historySubScore(profile))*weightHistory

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, CategoryFor(score)
}

// FloorScore returns the lowest numeric score belonging to a category. Used
// when a booking supplies a category directly without any health data to
// score from.
func FloorScore(s appointment.Severity) int {
	switch s {
	case appointment.SeverityEmergency:
		return emergencyThreshold
	case appointment.SeverityHigh:
		return highThreshold
	case appointment.SeverityMedium:
		return mediumThreshold
	default:
		return 0
	}
}

// CategoryFor maps a numeric score to its severity category.
func CategoryFor(score int) appointment.Severity {
	switch {
	case score >= emergencyThreshold:
		return appointment.SeverityEmergency
	case score >= highThreshold:
		return appointment.SeverityHigh
	case score >= mediumThreshold:
		return appointment.SeverityMedium
	default:
		return appointment.SeverityLow
	}
}

// scoreInputs is the merged view of profile and intake the sub-scores read.
type scoreInputs struct {
	systolicBP  *int
	diastolicBP *int
	heartRate   *int
	spo2        *int
	temperature *float64
	sugarLevel  *int

	symptoms []string
	duration healthprofile.SymptomDuration

	painLevel           int
	sudden              bool
	worsening           bool
	fever               bool
	bleeding            bool
	breathingDifficulty bool
}

func effectiveInputs(profile *healthprofile.HealthProfile, intake *Intake) scoreInputs {
	var in scoreInputs

	if profile != nil {
		in.systolicBP = profile.Vitals.SystolicBP
		in.diastolicBP = profile.Vitals.DiastolicBP
		in.heartRate = profile.Vitals.HeartRate
		in.spo2 = profile.Vitals.SpO2
		in.temperature = profile.Vitals.Temperature
		in.sugarLevel = profile.Vitals.SugarLevel
		in.symptoms = profile.SymptomTags
		in.duration = profile.Duration
		in.painLevel = profile.PainLevel
		in.sudden = profile.Sudden
		in.worsening = profile.Worsening
		in.fever = profile.Fever
		in.bleeding = profile.Bleeding
		in.breathingDifficulty = profile.BreathingDifficulty
	}

	if intake != nil {
		if v := intake.Vitals; v != nil {
			in.systolicBP = v.SystolicBP
			in.diastolicBP = v.DiastolicBP
			in.heartRate = v.HeartRate
			in.spo2 = v.SpO2
			in.temperature = v.Temperature
			in.sugarLevel = v.SugarLevel
		}
		if len(intake.Symptoms) > 0 {
			in.symptoms = intake.Symptoms
		}
		if intake.Duration != nil {
			in.duration = *intake.Duration
		}
	}

	in.systolicBP = plausibleInt(in.systolicBP, 50, 300)
	in.diastolicBP = plausibleInt(in.diastolicBP, 30, 200)
	in.heartRate = plausibleInt(in.heartRate, 20, 300)
	in.spo2 = plausibleInt(in.spo2, 50, 100)
	in.temperature = plausibleFloat(in.temperature, 90, 110)
	in.sugarLevel = plausibleInt(in.sugarLevel, 20, 1000)

	return in
}

// severitySubScore covers acute presentation: critical vital bands, the
// onset flags, and reported pain.
func severitySubScore(in scoreInputs) float64 {
	var s float64

	if in.spo2 != nil {
		switch {
		case *in.spo2 < 92:
			s += 40
		case *in.spo2 < 95:
			s += 20
		}
	}

	sys, dia := in.systolicBP, in.diastolicBP
	switch {
	case (sys != nil && *sys > 180) || (dia != nil && *dia > 120):
		s += 35 // hypertensive crisis
	case (sys != nil && *sys > 140) || (dia != nil && *dia > 90):
		s += 15
	case (sys != nil && *sys < 90) || (dia != nil && *dia < 60):
		s += 25 // hypotension
	}

	if hr := in.heartRate; hr != nil {
		switch {
		case *hr > 120 || *hr < 50:
			s += 20
		case *hr > 100 || *hr < 60:
			s += 10
		}
	}

	if t := in.temperature; t != nil {
		switch {
		case *t > 103:
			s += 20
		case *t > 100.4:
			s += 10
		case *t < 95:
			s += 25 // hypothermia
		}
	}

	if sl := in.sugarLevel; sl != nil {
		switch {
		case *sl > 300:
			s += 15
		case *sl < 70:
			s += 20
		}
	}

	if in.breathingDifficulty {
		s += 45
	}
	if in.bleeding {
		s += 30
	}
	if in.fever {
		s += 10
	}

	switch {
	case in.painLevel >= 8:
		s += 25
	case in.painLevel >= 6:
		s += 15
	case in.painLevel >= 4:
		s += 8
	}

	if in.sudden {
		s += 15
	}
	if in.worsening {
		s += 15
	}

	return s
}

func chronicSubScore(profile *healthprofile.HealthProfile) float64 {
	if profile == nil {
		return 0
	}
	c := profile.Conditions

	var s float64
	if c.Diabetes {
		s += 6
	}
	if c.Hypertension {
		s += 6
	}
	if c.Asthma {
		s += 6
	}
	if c.HeartDisease {
		s += 10
	}
	if c.KidneyDisease {
		s += 8
	}
	if c.Cancer {
		s += 12
	}
	if c.StrokeHistory {
		s += 10
	}
	return s
}

func symptomSubScore(in scoreInputs) float64 {
	var s float64

	if len(in.symptoms) > 0 {
		if hasCriticalSymptom(in.symptoms) {
			s += 40
		} else {
			s += math.Min(float64(len(in.symptoms))*5, 30)
		}
	}

	switch {
	case in.duration.Unit == healthprofile.UnitWeeks:
		s += 10
	case in.duration.Unit == healthprofile.UnitDays && in.duration.Value > 7:
		s += 8
	}

	return s
}

func ageSubScore(profile *healthprofile.HealthProfile) float64 {
	if profile == nil {
		return 0
	}

	var s float64
	if age := profile.Age; age > 0 {
		switch {
		case age < 1:
			s = 25 // infant
		case age < 5:
			s = 20
		case age < 12:
			s = 15
		case age > 75:
			s = 20
		case age >= 65:
			s = 15
		case age >= 50:
			s = 8
		}
	}
	if profile.PregnancyStatus {
		s += 15
	}
	return s
}

// vitalsSubScore catches moderate abnormalities below the critical bands
// already counted in severitySubScore.
func vitalsSubScore(in scoreInputs) float64 {
	var s float64
	if in.spo2 != nil && *in.spo2 >= 95 && *in.spo2 < 97 {
		s += 5
	}
	if in.systolicBP != nil && *in.systolicBP >= 130 && *in.systolicBP <= 140 {
		s += 5
	}
	if in.heartRate != nil && *in.heartRate >= 90 && *in.heartRate <= 100 {
		s += 5
	}
	return s
}

func historySubScore(profile *healthprofile.HealthProfile) float64 {
	if profile == nil {
		return 0
	}

	var s float64
	if profile.RecentHospitalization {
		s += 12
	}
	if profile.ICUHistory {
		s += 10
	}
	if n := len(profile.Surgeries); n > 0 {
		s += math.Min(float64(n)*3, 15)
	}
	if n := len(profile.Allergies); n > 0 {
		s += math.Min(float64(n)*2, 10)
	}
	if len(profile.PregnancyComplications) > 0 {
		s += 15
	}

	m := profile.Medications
	if m.BloodThinners {
		s += 8
	}
	if m.Chemotherapy {
		s += 12
	}
	if m.Steroids {
		s += 5
	}
	if m.Insulin {
		s += 5
	}
	return s
}

func hasCriticalSymptom(symptoms []string) bool {
	for _, tag := range symptoms {
		lower := strings.ToLower(tag)
		for _, crit := range criticalSymptoms {
			if strings.Contains(lower, crit) {
				return true
			}
		}
	}
	return false
}

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}

func plausibleInt(v *int, min, max int) *int {
	if v == nil || *v < min || *v > max {
		return nil
	}
	return v
}

func plausibleFloat(v *float64, min, max float64) *float64 {
	if v == nil || math.IsNaN(*v) || *v < min || *v > max {
		return nil
	}
	return v
}
