package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic in the deferring function and logs it with
// the full stack. The panic is swallowed, so use it only at goroutine or
// job boundaries where crashing the process would be worse than losing the
// unit of work.
//
//	defer observability.RecoverPanic(logger, "nightly aggregation")
func RecoverPanic(logger *Logger, task string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic": r,
			"task":  task,
			"stack": string(debug.Stack()),
		}).Error("recovered from panic")
	}
}

// RecoverPanicWithCallback is RecoverPanic plus a cleanup hook that runs
// after the panic has been logged. Used to close channels or release locks
// that the panicking code would otherwise leave held.
func RecoverPanicWithCallback(logger *Logger, task string, cleanup func()) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic": r,
			"task":  task,
			"stack": string(debug.Stack()),
		}).Error("recovered from panic")
		if cleanup != nil {
			cleanup()
		}
	}
}

// PanicToError converts a recovered panic value into an error, or returns
// nil when no panic occurred.
//
//	defer func() { err = observability.PanicToError(recover()) }()
func PanicToError(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
