package store

import "errors"

// errOptimisticConflict is wrapped into a Conflict apperror whenever an
// UPDATE's version-matching WHERE clause affects zero rows (spec §4.3:
// "on conflict the store reports a typed error").
var errOptimisticConflict = errors.New("row was modified concurrently")
