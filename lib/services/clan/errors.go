package clan

import "errors"

// ErrClanNotFound is returned when no clan matches the requested name
var ErrClanNotFound = errors.New("clan not found")
