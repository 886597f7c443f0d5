package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

//go:generate mockgen -source=exec.go -destination=mock_tools/mock_invoker.go -package=mock_tools

// Invoker runs an external tool and returns what it printed on stdout.
// Implementations return a *ToolError when the tool cannot be started or
// exits with a non-zero status.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args ...string) ([]byte, error)
}

// ToolError describes a failed tool invocation
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Cause    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Tool, strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// ExecInvoker runs tools as child processes
type ExecInvoker struct {
	// Dir is the working directory of the child; empty means the current one.
	Dir string

	// Stderr, when set, receives the child's stderr as it is produced in
	// addition to it being captured for errors.
	Stderr io.Writer
}

// NewExecInvoker returns an ExecInvoker running tools in dir
func NewExecInvoker(dir string) *ExecInvoker {
	return &ExecInvoker{Dir: dir}
}

// Invoke runs tool with args and waits for it to finish
func (i *ExecInvoker) Invoke(ctx context.Context, tool string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = i.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if i.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, i.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		toolErr := &ToolError{
			Tool:   tool,
			Args:   args,
			Output: stderr.String(),
			Cause:  err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), toolErr
	}

	return stdout.Bytes(), nil
}
