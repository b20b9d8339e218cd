package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrSlotNotAvailable        = errors.New("slot is already booked")
	ErrNoSlotAvailable         = errors.New("no available slots in the search window")
	ErrInvalidStatusTransition = errors.New("appointment is already completed or cancelled")
	ErrInvalidSeverity         = errors.New("invalid severity category")
	ErrInvalidSlotTime         = errors.New("slot time must be in HH:MM format")
)
