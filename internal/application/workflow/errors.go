package workflow

import (
	"errors"

	"github.com/garyjia/ohsms/internal/application/port"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

// Error kinds surfaced to callers of the report engine and services
var (
	ErrNotFound          = errors.New("report not found")
	ErrAlreadyClosed     = errors.New("report already closed")
	ErrMissingAssignment = errors.New("report has no assigned department")
	ErrEmptyNote         = errors.New("note is empty")
	ErrForbidden         = errors.New("action not permitted")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidStage      = domainwf.ErrInvalidStage
	ErrConcurrentUpdate  = port.ErrConcurrentUpdate
)
