package models

import "errors"

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrService     = errors.New("service error")
	ErrPersistence = errors.New("persistence error")
)
