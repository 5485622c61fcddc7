package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cutekitek/rankode-grader/internal/behavior"
	"github.com/cutekitek/rankode-grader/internal/classify"
	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const fileExt = ".yaml"

// Task describes which checks a submission goes through.
type Task struct {
	Name string `yaml:"name"`
	// base name of the <unit>.c / <unit>.h pair
	Unit    string   `yaml:"unit"`
	Headers []string `yaml:"headers"`
	// when set (default), a failed header check skips all other checks
	HeaderGate *bool     `yaml:"header_gate"`
	Calls      []Call    `yaml:"calls"`
	Classify   *Classify `yaml:"classify"`
	Behavior   *Behavior `yaml:"behavior"`
	// files copied from the task directory into the submission
	Assets []string `yaml:"assets"`

	Dir string `yaml:"-"`
}

type Call struct {
	Symbol string    `yaml:"symbol"`
	Args   []float64 `yaml:"args"`
	Expect *float64  `yaml:"expect"`
	// exclusive bounds
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

type Classify struct {
	File  string            `yaml:"file"`
	Start string            `yaml:"start"`
	End   string            `yaml:"end"`
	Rules classify.Template `yaml:"rules"`
}

type Behavior struct {
	Program string           `yaml:"program"`
	Timeout time.Duration    `yaml:"timeout"`
	Labels  *behavior.Labels `yaml:"labels"`
}

func (t *Task) Gated() bool {
	return t.HeaderGate == nil || *t.HeaderGate
}

func (t *Task) Validate() error {
	if t.Name == "" {
		return errors.New("task name is empty")
	}
	if len(t.Calls) > 0 && t.Unit == "" {
		return errors.Errorf("task %s: calls require a unit", t.Name)
	}
	for i, c := range t.Calls {
		if c.Symbol == "" {
			return errors.Errorf("task %s: call %d has no symbol", t.Name, i)
		}
		if c.Expect == nil && c.Min == nil && c.Max == nil {
			return errors.Errorf("task %s: call %s has no expectation", t.Name, c.Symbol)
		}
	}
	if t.Classify != nil {
		if t.Classify.File == "" {
			return errors.Errorf("task %s: classify needs a file", t.Name)
		}
		if len(t.Classify.Rules) == 0 {
			return errors.Errorf("task %s: classify template is empty", t.Name)
		}
	}
	if t.Behavior != nil && t.Behavior.Program == "" {
		return errors.Errorf("task %s: behavior needs a program", t.Name)
	}
	for _, a := range t.Assets {
		if filepath.IsAbs(a) || strings.HasPrefix(filepath.Clean(a), "..") {
			return errors.Errorf("task %s: asset %s must be relative to the task dir", t.Name, a)
		}
	}
	return nil
}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strconv.FormatFloat(a, 'g', -1, 64)
	}
	return fmt.Sprintf("%s(%s)", c.Symbol, strings.Join(args, ", "))
}

// Check compares the value returned by the call with its expectation.
func (c Call) Check(got float64) error {
	ok := true
	var want []string
	if c.Expect != nil {
		ok = ok && got == *c.Expect
		want = append(want, "== "+strconv.FormatFloat(*c.Expect, 'g', -1, 64))
	}
	if c.Min != nil {
		ok = ok && got > *c.Min
		want = append(want, "> "+strconv.FormatFloat(*c.Min, 'g', -1, 64))
	}
	if c.Max != nil {
		ok = ok && got < *c.Max
		want = append(want, "< "+strconv.FormatFloat(*c.Max, 'g', -1, 64))
	}
	if ok {
		return nil
	}
	return grading.New(grading.KindValidationMismatch, "call", fmt.Sprintf(
		"%s returned %s, expected %s", c, strconv.FormatFloat(got, 'g', -1, 64), strings.Join(want, " and ")))
}

func Parse(data []byte) (*Task, error) {
	t := new(Task)
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, errors.Wrap(err, "failed to decode task")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "task %s", path)
	}
	t.Dir = filepath.Dir(path)
	return t, nil
}

// LoadDir loads every task file in dir, keyed by task name.
func LoadDir(dir string) (map[string]*Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	tasks := make(map[string]*Task)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != fileExt {
			continue
		}
		t, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := tasks[t.Name]; dup {
			return nil, errors.Errorf("duplicate task %s", t.Name)
		}
		tasks[t.Name] = t
	}
	return tasks, nil
}
