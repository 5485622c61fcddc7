package grader

import (
	"fmt"
	"io"
	"time"

	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/google/uuid"
)

type CheckResult struct {
	Name    string
	Passed  bool
	Kind    grading.Kind
	Message string
	// full error chain, compiler output included
	Err error
}

type Report struct {
	ID       uuid.UUID
	Task     string
	Dir      string
	Started  time.Time
	Finished time.Time
	Checks   []CheckResult
}

func newReport(task, dir string) *Report {
	return &Report{ID: uuid.New(), Task: task, Dir: dir, Started: time.Now()}
}

func (r *Report) add(name string, err error) {
	check := CheckResult{Name: name, Passed: err == nil}
	if err != nil {
		check.Kind = grading.KindOf(err)
		check.Message = grading.Message(err)
		check.Err = err
	}
	r.Checks = append(r.Checks, check)
}

// Passed reports whether at least one check ran and none failed.
func (r *Report) Passed() bool {
	if len(r.Checks) == 0 {
		return false
	}
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func (r *Report) Failed() []CheckResult {
	var failed []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Write prints a human readable summary of the report.
func (r *Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %s (%s)\n", r.Task, r.ID, r.Finished.Sub(r.Started).Round(time.Millisecond)); err != nil {
		return err
	}
	for _, c := range r.Checks {
		var err error
		if c.Passed {
			_, err = fmt.Fprintf(w, "  PASS %s\n", c.Name)
		} else {
			_, err = fmt.Fprintf(w, "  FAIL %s [%s] %s\n", c.Name, c.Kind, c.Message)
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d/%d checks passed\n", len(r.Checks)-len(r.Failed()), len(r.Checks))
	return err
}
