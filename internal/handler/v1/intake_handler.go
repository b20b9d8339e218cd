package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/service"
)

type IntakeHandler struct {
	intakeSvc *service.IntakeService
}

func NewIntakeHandler(intakeSvc *service.IntakeService) *IntakeHandler {
	return &IntakeHandler{intakeSvc: intakeSvc}
}

type intakeRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	Age             int       `json:"age"`
	PregnancyStatus bool      `json:"pregnancy_status"`

	SymptomTags []string                      `json:"symptom_tags"`
	PainLevel   int                           `json:"pain_level"`
	Duration    healthprofile.SymptomDuration `json:"duration"`

	Sudden              bool `json:"sudden"`
	Worsening           bool `json:"worsening"`
	Fever               bool `json:"fever"`
	Bleeding            bool `json:"bleeding"`
	BreathingDifficulty bool `json:"breathing_difficulty"`

	Vitals      healthprofile.Vitals      `json:"vitals"`
	Conditions  healthprofile.Conditions  `json:"conditions"`
	Medications healthprofile.Medications `json:"medications"`

	Surgeries              []string `json:"surgeries"`
	Allergies              []string `json:"allergies"`
	PregnancyComplications []string `json:"pregnancy_complications"`
	RecentHospitalization  bool     `json:"recent_hospitalization"`
	ICUHistory             bool     `json:"icu_history"`
}

// Submit upserts the caller's health profile and returns the recomputed
// severity.
func (h *IntakeHandler) Submit(c *gin.Context) {
	var req intakeRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := callerClaims(c)

	patientID := req.PatientID
	if claims.Role == domain.RolePatient || patientID == uuid.Nil {
		patientID = claims.UserID
	}

	profile := &healthprofile.HealthProfile{
		PatientID:              patientID,
		Age:                    req.Age,
		PregnancyStatus:        req.PregnancyStatus,
		SymptomTags:            req.SymptomTags,
		PainLevel:              req.PainLevel,
		Duration:               req.Duration,
		Sudden:                 req.Sudden,
		Worsening:              req.Worsening,
		Fever:                  req.Fever,
		Bleeding:               req.Bleeding,
		BreathingDifficulty:    req.BreathingDifficulty,
		Vitals:                 req.Vitals,
		Conditions:             req.Conditions,
		Medications:            req.Medications,
		Surgeries:              req.Surgeries,
		Allergies:              req.Allergies,
		PregnancyComplications: req.PregnancyComplications,
		RecentHospitalization:  req.RecentHospitalization,
		ICUHistory:             req.ICUHistory,
	}

	score, category, err := h.intakeSvc.SubmitIntake(c.Request.Context(), profile,
		claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"severity_score": score,
		"severity":       category,
	})
}

// Profile returns the stored health profile for a patient.
func (h *IntakeHandler) Profile(c *gin.Context) {
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	claims := callerClaims(c)

	profile, err := h.intakeSvc.Profile(c.Request.Context(), patientID, claims.UserID, string(claims.Role))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, profile)
}
