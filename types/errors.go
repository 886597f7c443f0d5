package types

import (
	"fmt"
)

// errBuild is embedded by every error a build can end with. It names the
// stage that failed and the path or reference it was working on.
type errBuild struct {
	Stage   string
	Subject string
	Msg     string
	Cause   error
}

func (e *errBuild) Error() string {
	msg := e.Stage + ": " + e.Msg
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *errBuild) Unwrap() error {
	return e.Cause
}

// ConfigError is an invalid or contradictory build configuration. It is
// always raised before any external tool is invoked.
type ConfigError struct{ errBuild }

// ResolutionError is a failure to pull or build the source container image.
type ResolutionError struct{ errBuild }

// AssemblyError is a failure of the boot image assembler, including output
// that could not be recognized as an initramfs.
type AssemblyError struct{ errBuild }

// WriteError is an I/O failure while serializing the artifact.
type WriteError struct{ errBuild }

// NewConfigError returns a ConfigError about subject
func NewConfigError(subject, msg string, cause error) *ConfigError {
	return &ConfigError{errBuild{Stage: "config", Subject: subject, Msg: msg, Cause: cause}}
}

// NewResolutionError returns a ResolutionError about the image reference or build context
func NewResolutionError(subject, msg string, cause error) *ResolutionError {
	return &ResolutionError{errBuild{Stage: "resolve", Subject: subject, Msg: msg, Cause: cause}}
}

// NewAssemblyError returns an AssemblyError about subject
func NewAssemblyError(subject, msg string, cause error) *AssemblyError {
	return &AssemblyError{errBuild{Stage: "assemble", Subject: subject, Msg: msg, Cause: cause}}
}

// NewWriteError returns a WriteError about the output
func NewWriteError(subject, msg string, cause error) *WriteError {
	return &WriteError{errBuild{Stage: "write", Subject: subject, Msg: msg, Cause: cause}}
}
