package repo

import "errors"

// ErrNotFound is returned when a record does not exist for the requesting
// user. Ownership by a different user is indistinguishable from absence.
var ErrNotFound = errors.New("not found")
