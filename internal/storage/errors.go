package storage

import "errors"

// ErrNotFound is returned when a catalog key has no entry.
var ErrNotFound = errors.New("catalog entry not found")
