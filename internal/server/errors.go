// internal/server/errors.go
package server

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyLaunched is returned when Launch is called on a manager that is
// already supervising a live server process.
var ErrAlreadyLaunched = errors.New("server: already launched")

// ErrServerExited is returned when the server process exits before it
// announces its endpoint.
var ErrServerExited = errors.New("server: process exited before announcing an endpoint")

// DirectoryCreationError reports a failure to create the agent folder.
type DirectoryCreationError struct {
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("server: failed to create agent folder %q: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error { return e.Err }

// SpawnError reports a failure to start the server executable.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("server: failed to spawn %q: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// EndpointTimeoutError reports that the bounded endpoint discovery wait
// expired before the server announced its endpoint.
type EndpointTimeoutError struct {
	Timeout time.Duration
}

func (e *EndpointTimeoutError) Error() string {
	return fmt.Sprintf("server: timed out after %s waiting for the endpoint announcement", e.Timeout)
}
