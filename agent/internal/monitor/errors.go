package monitor

import "fmt"

// ConfigError reports a monitor that could not be constructed.
type ConfigError struct {
	Monitor string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("monitor %q: config: %v", e.Monitor, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SampleError reports a failed sampling cycle. Class is one of the
// source.Class* values.
type SampleError struct {
	Monitor string
	Class   string
	Err     error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("monitor %q: sample (%s): %v", e.Monitor, e.Class, e.Err)
}

func (e *SampleError) Unwrap() error { return e.Err }
