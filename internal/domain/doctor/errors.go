package doctor

import "errors"

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrDoctorUnavailable   = errors.New("doctor is currently unavailable")
	ErrInvalidWorkingHours = errors.New("working hours must satisfy 0 <= start < end <= 24")
)
