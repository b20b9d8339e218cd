package healthprofile

import "errors"

var ErrProfileNotFound = errors.New("health profile not found")
