package behavior

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cutekitek/rankode-grader/internal/build"
	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/cutekitek/rankode-grader/internal/repository/dto"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/cutekitek/rankode-grader/internal/runner"
	"github.com/pkg/errors"
)

const (
	stage = "behavior"

	ResultsDir = "test-results"
	ResultFile = "result.txt"

	defaultTimeout       = 10 * time.Second
	defaultMaxOutputSize = 1024 * 1024
)

type Validator struct {
	Harness       *build.Harness
	Runner        runner.Runner
	Labels        Labels
	Timeout       time.Duration
	MemoryLimit   int
	MaxOutputSize int
}

func NewValidator(h *build.Harness, r runner.Runner) *Validator {
	return &Validator{
		Harness:       h,
		Runner:        r,
		Labels:        DefaultLabels,
		Timeout:       defaultTimeout,
		MaxOutputSize: defaultMaxOutputSize,
	}
}

// ResultPath is where the captured output of the program is stored.
func (v *Validator) ResultPath() string {
	return filepath.Join(v.Harness.Dir, ResultsDir, ResultFile)
}

// Validate builds <name>.c as a program, runs it with the args file on
// stdin and compares the printed fields with the values derived from it.
func (v *Validator) Validate(ctx context.Context, name string) error {
	expected, input, err := ReadArgs(filepath.Join(v.Harness.Dir, ArgsFile))
	if err != nil {
		return err
	}

	program, err := v.Harness.BuildProgram(ctx, name)
	if err != nil {
		return err
	}

	resultPath := v.ResultPath()
	if err := os.Remove(resultPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove previous result")
	}

	res, err := v.Runner.Run(ctx, &dto.RunRequest{
		Binary:        program,
		Dir:           v.Harness.Dir,
		Input:         string(input),
		Timeout:       v.Timeout,
		MemoryLimit:   v.MemoryLimit,
		MaxOutputSize: v.MaxOutputSize,
	})
	if err != nil {
		return grading.Wrap(err, grading.KindExecutionFailure, stage, "running "+name+".c failed")
	}

	switch res.Status {
	case models.RunStatusOk:
	case models.RunStatusTimeout:
		return grading.New(grading.KindTimeout, stage, "running "+name+".c timed out after "+v.Timeout.String())
	case models.RunStatusRunningError:
		// the output is still graded, only the fields matter
		slog.Warn("program exited abnormally", "exitStatus", res.ExitStatus, "stderr", res.Error)
	default:
		return grading.New(grading.KindExecutionFailure, stage, "running "+name+".c failed: "+res.Status.String())
	}

	if err := os.MkdirAll(filepath.Dir(resultPath), 0o755); err != nil {
		return grading.Wrap(err, grading.KindExecutionFailure, stage, "result log could not be created")
	}
	if err := os.WriteFile(resultPath, []byte(res.Output), 0o644); err != nil {
		return grading.Wrap(err, grading.KindExecutionFailure, stage, "result log could not be written")
	}

	return v.check(expected, resultPath)
}

func (v *Validator) check(expected *Expected, resultPath string) error {
	content, err := os.ReadFile(resultPath)
	if err != nil {
		return grading.Wrap(err, grading.KindExecutionFailure, stage, "running the program produced no result")
	}
	observed, err := ParseOutput(bytes.NewReader(content), v.Labels)
	if err != nil {
		return grading.Wrap(err, grading.KindExecutionFailure, stage, "result log could not be read")
	}
	verdict := Compare(expected, observed)
	slog.Debug("behavior verdict",
		"expectedName", expected.Name, "name", observed.Name,
		"expectedDate", expected.Date, "date", observed.Date,
		"expectedRate", expected.Rate, "rate", observed.Rate)
	return verdict.Err()
}
