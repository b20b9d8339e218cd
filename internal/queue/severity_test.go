package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
)

func intp(v int) *int          { return &v }
func floatp(v float64) *float64 { return &v }

func TestScoreNoData(t *testing.T) {
	score, category := Score(nil, nil)
	assert.Equal(t, 0, score)
	assert.Equal(t, appointment.SeverityLow, category)
}

func TestScoreMildSymptomsOnly(t *testing.T) {
	// Two non-critical symptoms: 2*5 = 10 on the symptom category, 20% weight.
	score, category := Score(nil, &Intake{Symptoms: []string{"rash", "itching"}})
	assert.Equal(t, 2, score)
	assert.Equal(t, appointment.SeverityLow, category)
}

func TestScoreCriticalPresentation(t *testing.T) {
	profile := &healthprofile.HealthProfile{
		Age: 80,
		Vitals: healthprofile.Vitals{
			SpO2:       intp(88),
			SystolicBP: intp(190),
			HeartRate:  intp(130),
		},
		SymptomTags:           []string{"chest pain"},
		Duration:              healthprofile.SymptomDuration{Value: 2, Unit: healthprofile.UnitWeeks},
		PainLevel:             9,
		Sudden:                true,
		Worsening:             true,
		BreathingDifficulty:   true,
		Bleeding:              true,
		RecentHospitalization: true,
		ICUHistory:            true,
		Surgeries:             []string{"bypass", "stent"},
		Conditions: healthprofile.Conditions{
			HeartDisease:  true,
			Cancer:        true,
			StrokeHistory: true,
		},
	}

	// Acute category saturates at 100 (35 weighted), critical symptom tag
	// plus weeks duration gives 50 (10), conditions 32 (6.4), age 20 (2),
	// history 28 (1.4).
	score, category := Score(profile, nil)
	assert.Equal(t, 55, score)
	assert.Equal(t, appointment.SeverityHigh, category)
}

func TestScoreDeterministic(t *testing.T) {
	profile := &healthprofile.HealthProfile{
		Age:         70,
		SymptomTags: []string{"cough", "fatigue", "headache"},
		PainLevel:   6,
		Fever:       true,
	}

	first, firstCat := Score(profile, nil)
	for i := 0; i < 10; i++ {
		score, category := Score(profile, nil)
		require.Equal(t, first, score)
		require.Equal(t, firstCat, category)
	}
}

func TestScoreImplausibleVitalsTreatedAbsent(t *testing.T) {
	base := &healthprofile.HealthProfile{PainLevel: 5}

	withGarbage := *base
	withGarbage.Vitals = healthprofile.Vitals{
		SpO2:        intp(350),
		SystolicBP:  intp(9),
		Temperature: floatp(500),
	}

	cleanScore, _ := Score(base, nil)
	garbageScore, _ := Score(&withGarbage, nil)
	assert.Equal(t, cleanScore, garbageScore)
}

func TestScoreIntakeOverridesProfile(t *testing.T) {
	profile := &healthprofile.HealthProfile{
		Vitals: healthprofile.Vitals{SpO2: intp(98)},
	}
	intake := &Intake{
		Vitals: &appointment.VitalsSnapshot{SpO2: intp(88)},
	}

	profileOnly, _ := Score(profile, nil)
	overridden, _ := Score(profile, intake)
	assert.Greater(t, overridden, profileOnly)
}

func TestScoreCriticalSymptomSubstringMatch(t *testing.T) {
	direct, _ := Score(nil, &Intake{Symptoms: []string{"Severe Chest Pain since morning"}})
	mild, _ := Score(nil, &Intake{Symptoms: []string{"mild cough"}})
	assert.Greater(t, direct, mild)
}

func TestCategoryBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  appointment.Severity
	}{
		{0, appointment.SeverityLow},
		{25, appointment.SeverityLow},
		{26, appointment.SeverityMedium},
		{50, appointment.SeverityMedium},
		{51, appointment.SeverityHigh},
		{75, appointment.SeverityHigh},
		{76, appointment.SeverityEmergency},
		{100, appointment.SeverityEmergency},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CategoryFor(tc.score), "score %d", tc.score)
	}
}

func TestFloorScoreRoundTrips(t *testing.T) {
	for _, sev := range []appointment.Severity{
		appointment.SeverityLow,
		appointment.SeverityMedium,
		appointment.SeverityHigh,
		appointment.SeverityEmergency,
	} {
		assert.Equal(t, sev, CategoryFor(FloorScore(sev)))
	}
}

func TestScoreClampedTo100(t *testing.T) {
	// Saturate every category.
	profile := &healthprofile.HealthProfile{
		Age:             0,
		PregnancyStatus: true,
		Vitals: healthprofile.Vitals{
			SpO2:        intp(85),
			SystolicBP:  intp(200),
			DiastolicBP: intp(130),
			HeartRate:   intp(140),
			Temperature: floatp(104),
			SugarLevel:  intp(400),
		},
		SymptomTags:            []string{"unconscious", "seizure"},
		Duration:               healthprofile.SymptomDuration{Value: 3, Unit: healthprofile.UnitWeeks},
		PainLevel:              10,
		Sudden:                 true,
		Worsening:              true,
		Fever:                  true,
		Bleeding:               true,
		BreathingDifficulty:    true,
		RecentHospitalization:  true,
		ICUHistory:             true,
		Surgeries:              []string{"a", "b", "c", "d", "e", "f"},
		Allergies:              []string{"a", "b", "c", "d", "e", "f"},
		PregnancyComplications: []string{"preeclampsia"},
		Conditions: healthprofile.Conditions{
			Diabetes: true, Hypertension: true, Asthma: true,
			HeartDisease: true, KidneyDisease: true, Cancer: true, StrokeHistory: true,
		},
		Medications: healthprofile.Medications{
			BloodThinners: true, Insulin: true, Steroids: true, Chemotherapy: true,
		},
	}

	score, _ := Score(profile, nil)
	assert.LessOrEqual(t, score, 100)
	assert.GreaterOrEqual(t, score, 51)
}
