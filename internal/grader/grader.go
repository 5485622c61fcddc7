package grader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cutekitek/rankode-grader/internal/behavior"
	"github.com/cutekitek/rankode-grader/internal/build"
	"github.com/cutekitek/rankode-grader/internal/classify"
	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/cutekitek/rankode-grader/internal/header"
	"github.com/cutekitek/rankode-grader/internal/runner"
	"github.com/cutekitek/rankode-grader/internal/task"
	"github.com/cutekitek/rankode-grader/pkg/files"
	"github.com/pkg/errors"
)

// AuditFile receives the lines scanned by the classify check.
const AuditFile = "lines.txt"

type Grader struct {
	Compiler      build.Compiler
	Runner        runner.Runner
	RunTimeout    time.Duration
	MemoryLimit   int
	MaxOutputSize int
}

func NewGrader(compiler build.Compiler, r runner.Runner) *Grader {
	return &Grader{Compiler: compiler, Runner: r}
}

// Grade runs every check of t against the submission in dir. A failed check
// never stops the independent ones; the returned error is reserved for
// problems of the grader itself.
func (g *Grader) Grade(ctx context.Context, dir string, t *task.Task) (*Report, error) {
	report := newReport(t.Name, dir)
	defer func() {
		report.Finished = time.Now()
		slog.Info("submission graded", "report", report.ID, "task", t.Name, "passed", report.Passed(),
			"checks", len(report.Checks), "failed", len(report.Failed()))
	}()

	if err := g.stageAssets(dir, t); err != nil {
		return report, err
	}

	if !g.checkHeaders(dir, t, report) && t.Gated() {
		slog.Debug("header gate closed", "report", report.ID)
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	harness := build.NewHarness(dir, g.Compiler)
	if len(t.Calls) > 0 {
		g.checkCalls(ctx, harness, t, report)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if t.Classify != nil {
		if err := g.checkClassify(dir, t.Classify, report); err != nil {
			return report, err
		}
	}
	if t.Behavior != nil {
		report.add("behavior:"+t.Behavior.Program, g.validator(harness, t.Behavior).Validate(ctx, t.Behavior.Program))
	}
	return report, ctx.Err()
}

func (g *Grader) stageAssets(dir string, t *task.Task) error {
	for _, asset := range t.Assets {
		dst := filepath.Join(dir, filepath.Base(asset))
		if err := files.CopyFile(filepath.Join(t.Dir, asset), dst); err != nil {
			return errors.Wrapf(err, "failed to stage asset %s", asset)
		}
	}
	return nil
}

func (g *Grader) checkHeaders(dir string, t *task.Task, report *Report) bool {
	ok := true
	for _, name := range t.Headers {
		err := checkHeader(filepath.Join(dir, name), name)
		report.add("header:"+name, err)
		ok = ok && err == nil
	}
	return ok
}

func checkHeader(path, name string) error {
	valid, err := header.Check(path)
	if err != nil {
		if os.IsNotExist(err) {
			return grading.MissingFile("header", name)
		}
		return grading.Wrap(err, grading.KindMissingFile, "header", name+" could not be read")
	}
	if !valid {
		return grading.New(grading.KindHeaderInvalid, "header", "missing or corrupt data in header of "+name)
	}
	return nil
}

// checkCalls loads the unit once. When the build fails every call is
// reported with the build error.
func (g *Grader) checkCalls(ctx context.Context, harness *build.Harness, t *task.Task, report *Report) {
	unit, err := harness.Load(ctx, t.Unit)
	report.add("build:"+t.Unit, err)
	if err != nil {
		for _, call := range t.Calls {
			report.add("call:"+call.String(), err)
		}
		return
	}
	defer func() {
		if err := unit.Close(); err != nil {
			slog.Warn("failed to close unit", "unit", t.Unit, "error", err)
		}
	}()

	for _, call := range t.Calls {
		got, err := unit.Call(call.Symbol, call.Args...)
		if err != nil {
			err = grading.Wrap(err, grading.KindExecutionFailure, "call", call.String()+" could not be called")
		} else {
			slog.Debug("call returned", "call", call.String(), "value", got)
			err = call.Check(got)
		}
		report.add("call:"+call.String(), err)
	}
}

func (g *Grader) checkClassify(dir string, c *task.Classify, report *Report) error {
	auditDir := filepath.Join(dir, behavior.ResultsDir)
	if err := os.MkdirAll(auditDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create results dir")
	}
	audit, err := os.OpenFile(filepath.Join(auditDir, AuditFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open audit log")
	}
	defer audit.Close()

	res, err := classify.NewClassifier(c.Start, c.End, audit).ClassifyFile(filepath.Join(dir, c.File), c.Rules)
	if err == nil {
		slog.Debug("lines classified", "file", c.File, "scanned", res.Scanned,
			"falseExcluded", res.FalseExcluded, "notExcluded", res.NotExcluded)
		err = res.Err()
	}
	report.add("classify:"+c.File, err)
	return nil
}

func (g *Grader) validator(harness *build.Harness, b *task.Behavior) *behavior.Validator {
	v := behavior.NewValidator(harness, g.Runner)
	if b.Timeout > 0 {
		v.Timeout = b.Timeout
	} else if g.RunTimeout > 0 {
		v.Timeout = g.RunTimeout
	}
	if b.Labels != nil {
		v.Labels = *b.Labels
	}
	if g.MaxOutputSize > 0 {
		v.MaxOutputSize = g.MaxOutputSize
	}
	v.MemoryLimit = g.MemoryLimit
	return v
}
