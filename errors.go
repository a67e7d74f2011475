package tracemark

import "errors"

var (
	// ErrUnconfigured is returned by builders and the scanner when a required
	// path setting is missing.
	ErrUnconfigured = errors.New("tracemark: not configured")
	// ErrScannerRunning is returned when the configuration is changed while
	// the scheduler is running.
	ErrScannerRunning = errors.New("tracemark: scanner is running")
	// ErrNoLedger is returned by QueryBuilder methods when the engine has no
	// ledger.
	ErrNoLedger = errors.New("tracemark: no ledger configured")
)
