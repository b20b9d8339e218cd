package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/service"
)

type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Fields  []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Success: false, Message: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Success: false,
			Message: "validation failed",
			Fields:  validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, doctor.ErrDoctorNotFound),
		errors.Is(err, healthprofile.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: err.Error()})

	case errors.Is(err, appointment.ErrSlotNotAvailable),
		errors.Is(err, appointment.ErrNoSlotAvailable):
		c.JSON(http.StatusConflict, ErrorResponse{Success: false, Message: err.Error()})

	case errors.Is(err, appointment.ErrInvalidStatusTransition),
		errors.Is(err, appointment.ErrInvalidSeverity),
		errors.Is(err, appointment.ErrInvalidSlotTime),
		errors.Is(err, doctor.ErrDoctorUnavailable):
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: err.Error()})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Success: false, Message: "access denied"})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Message: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}
