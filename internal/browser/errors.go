// internal/browser/errors.go
package browser

import "fmt"

// UnsupportedEngineError is returned when the configured browser engine
// cannot be driven over the Chrome DevTools Protocol.
type UnsupportedEngineError struct {
	Engine string
}

func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("browser: engine %q is not supported by the CDP backend", e.Engine)
}

// NavigationError reports a failure to launch the browser or load the
// endpoint URL. Session setup errors are fatal; there is no retry.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("browser: failed to navigate to %q: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// EvaluationError reports a failed structured call against the page's
// automation object.
type EvaluationError struct {
	Method string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("browser: driver call %q failed: %v", e.Method, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
