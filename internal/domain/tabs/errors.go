package tabs

import "errors"

var (
	ErrTabNotFound        = errors.New("tab not found")
	ErrPinnedTab          = errors.New("home tab cannot be moved or detached")
	ErrEmptyTabID         = errors.New("tab id is empty")
	ErrUnknownContentType = errors.New("unknown content type")
	ErrIndexOutOfRange    = errors.New("tab index out of range")
	ErrReservationSettled = errors.New("reservation already committed or aborted")
	ErrForeignReservation = errors.New("reservation belongs to another store")
)
