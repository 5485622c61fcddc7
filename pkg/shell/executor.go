package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

type Command struct {
	ctx    context.Context
	Cmd    *exec.Cmd
	StdOut *bytes.Buffer
	StdErr *bytes.Buffer
}

// ExitError is returned when the command ran but did not exit cleanly.
type ExitError struct {
	ErrorLogs  string
	StatusCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed(%d)", e.StatusCode)
}

func NewCommand(ctx context.Context, dir string, command string, args ...string) *Command {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return &Command{
		ctx:    ctx,
		Cmd:    cmd,
		StdOut: stdout,
		StdErr: stderr,
	}
}

// Run executes the command. A non-zero exit is reported as *ExitError carrying
// both output streams, a context deadline as the context error.
func (c *Command) Run() error {
	err := c.Cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{ErrorLogs: c.StdErr.String() + c.StdOut.String(), StatusCode: exitErr.ExitCode()}
	}
	return errors.Wrap(err, "failed to start command")
}

func (c *Command) RunAndCollectStdout() (string, error) {
	err := c.Run()
	return strings.TrimSpace(c.StdOut.String()), err
}
