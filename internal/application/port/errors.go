package port

import "errors"

// ErrConcurrentUpdate is returned by ReportRepository.Put when the stored
// version no longer matches the version the caller loaded.
var ErrConcurrentUpdate = errors.New("report was modified concurrently")
