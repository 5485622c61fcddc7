package process

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cutekitek/rankode-grader/internal/repository/dto"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/cutekitek/rankode-grader/internal/runner"
	"github.com/pkg/errors"
)

// time the runner waits for output pipes after the program was killed
const pipeDrainDelay = time.Second

// ProcessRunner executes programs directly on the host. It enforces the
// timeout and output limit but provides no isolation.
type ProcessRunner struct{}

func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{}
}

func (r *ProcessRunner) Run(ctx context.Context, req *dto.RunRequest) (*dto.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, req.Timeout)
		defer cancel()
	}

	stdout := runner.NewOutputBuffer(req.MaxOutputSize, cancel)
	stderr := runner.NewOutputBuffer(req.MaxOutputSize, cancel)

	cmd := exec.CommandContext(runCtx, req.Binary, req.Args...)
	cmd.Dir = req.Dir
	cmd.Stdin = strings.NewReader(req.Input)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = pipeDrainDelay

	start := time.Now()
	err := cmd.Run()
	result := &dto.RunResult{
		Status:        models.RunStatusOk,
		Output:        stdout.String(),
		Error:         stderr.String(),
		ExecutionTime: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitStatus = cmd.ProcessState.ExitCode()
	}

	switch {
	case stdout.Overflowed() || stderr.Overflowed():
		result.Status = models.RunStatusOutputOverflow
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Status = models.RunStatusTimeout
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrap(err, "failed to start program")
		}
		result.Status = models.RunStatusRunningError
	}

	slog.Debug("execution result", "status", result.Status, "exitStatus", result.ExitStatus, "time", result.ExecutionTime, "stderr", result.Error)
	return result, nil
}
