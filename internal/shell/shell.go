// Package shell spawns external tools and reports their failures uniformly.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command describes one invocation of an external tool.
type Command struct {
	Path  string
	Args  []string
	Env   []string // nil inherits the current environment
	Stdin []byte
}

// Argv returns the command line as a slice, program first.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// Runner executes a command and returns its combined output.
// A non-zero exit is reported as *ExternalProcessError.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExternalProcessError is returned when an external tool exits non-zero or
// produces output its caller does not recognise.
type ExternalProcessError struct {
	ExitCode int
	Command  []string
	Output   []byte
}

func (e *ExternalProcessError) Error() string {
	return fmt.Sprintf("command %q returned exit status %d: %s",
		strings.Join(e.Command, " "), e.ExitCode, strings.TrimSpace(string(e.Output)))
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts cmd, feeds it Stdin and waits for it to exit. Cancelling ctx kills the process.
func (ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	output, err := c.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", cmd.Path, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, &ExternalProcessError{
				ExitCode: exitErr.ExitCode(),
				Command:  cmd.Argv(),
				Output:   output,
			}
		}
		return output, fmt.Errorf("failed to run %s: %w", cmd.Path, err)
	}
	return output, nil
}
