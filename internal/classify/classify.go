package classify

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/cutekitek/rankode-grader/pkg/files"
	"github.com/pkg/errors"
)

const (
	DefaultStart = "int run()"
	DefaultEnd   = "return 0;"

	commentMarker = "//"
)

// Rule tells whether a line containing Pattern must stay active (Active)
// or must be commented out.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Active  bool   `yaml:"active"`
}

// Template is an ordered rule list. Every rule whose pattern occurs in a
// line is checked against it, and the first one the line contradicts is
// counted.
type Template []Rule

func (t Template) violated(line string) (Rule, bool) {
	excluded := Excluded(line)
	for _, rule := range t {
		if strings.Contains(line, rule.Pattern) && excluded == rule.Active {
			return rule, true
		}
	}
	return Rule{}, false
}

type Result struct {
	// active lines that were commented out
	FalseExcluded int
	// lines that should have been commented out but were left active
	NotExcluded int
	Scanned     int
}

func (r Result) Passed() bool {
	return r.FalseExcluded == 0 && r.NotExcluded == 0
}

func (r Result) Err() error {
	if r.Passed() {
		return nil
	}
	return grading.New(grading.KindValidationMismatch, "classify", fmt.Sprintf(
		"not all issues have been fixed correctly: %d are false excluded, %d are still left to exclude",
		r.FalseExcluded, r.NotExcluded))
}

type Classifier struct {
	Start string
	End   string
	// Audit receives every scanned line. Nil disables the audit log.
	Audit io.Writer
}

func NewClassifier(start, end string, audit io.Writer) *Classifier {
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = DefaultEnd
	}
	return &Classifier{Start: start, End: end, Audit: audit}
}

// Excluded reports whether a line is commented out.
func Excluded(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), commentMarker)
}

// Classify scans the lines following the Start marker up to and including
// the first End line and counts every line whose state contradicts t.
func (c *Classifier) Classify(r io.Reader, t Template) (Result, error) {
	var (
		res      Result
		auditErr error
	)
	scanning := false
	err := files.EachLine(r, func(line string) bool {
		if !scanning {
			scanning = strings.Contains(line, c.Start)
			return true
		}
		res.Scanned++
		if c.Audit != nil {
			if _, auditErr = io.WriteString(c.Audit, line+"\n"); auditErr != nil {
				return false
			}
		}
		if rule, ok := t.violated(line); ok {
			slog.Debug("misclassified line", "pattern", rule.Pattern, "active", rule.Active, "line", line)
			if rule.Active {
				res.FalseExcluded++
			} else {
				res.NotExcluded++
			}
		}
		return !strings.Contains(line, c.End)
	})
	if auditErr != nil {
		return res, errors.Wrap(auditErr, "failed to write audit log")
	}
	if err != nil {
		return res, grading.Wrap(err, grading.KindMissingFile, "classify", "source could not be read")
	}
	return res, nil
}

func (c *Classifier) ClassifyFile(path string, t Template) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, grading.MissingFile("classify", path)
		}
		return Result{}, grading.Wrap(err, grading.KindMissingFile, "classify", path+" could not be read")
	}
	defer file.Close()
	return c.Classify(file, t)
}
