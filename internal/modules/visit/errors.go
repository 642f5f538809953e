// README: Visit command failures reported to callers.
package visit

import "errors"

var (
	ErrConflictActiveVisit = errors.New("representative already has a visit in progress")
	ErrAuthorizationDenied = errors.New("doctor is outside the representative's assigned clinics")
	ErrNotFound            = errors.New("visit not found")
	ErrValidation          = errors.New("validation failed")
	// ErrConflict is a lost race on the (representative, doctor, day) slot.
	ErrConflict = errors.New("visit state conflict")
)
