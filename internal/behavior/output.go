package behavior

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/cutekitek/rankode-grader/pkg/files"
)

// Labels lists the accepted spellings of each output field, lower case and
// including the colon.
type Labels struct {
	Name []string `yaml:"name"`
	Date []string `yaml:"date"`
	Rate []string `yaml:"rate"`
}

var DefaultLabels = Labels{
	Name: []string{"name:"},
	Date: []string{"geburtsdatum:", "date-of-birth:"},
	Rate: []string{"steuersatz:", "rate:"},
}

// Observed holds the fields found in a program's output. A field that was
// printed but could not be parsed counts as not found.
type Observed struct {
	Name    string
	Date    time.Time
	Rate    float64
	HasName bool
	HasDate bool
	HasRate bool
}

func containsAny(line string, labels []string) bool {
	for _, label := range labels {
		if strings.Contains(line, label) {
			return true
		}
	}
	return false
}

func afterColon(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}

// ParseOutput scans output for the labeled lines. Later lines win.
func ParseOutput(r io.Reader, labels Labels) (Observed, error) {
	var obs Observed
	err := files.EachLine(r, func(line string) bool {
		lower := strings.ToLower(line)
		if containsAny(lower, labels.Name) {
			obs.Name = strings.ReplaceAll(afterColon(line), " ", "")
			obs.HasName = true
		}
		if containsAny(lower, labels.Date) {
			date, err := time.Parse(DateLayout, afterColon(line))
			obs.Date, obs.HasDate = date, err == nil
		}
		if containsAny(lower, labels.Rate) {
			rate, err := strconv.ParseFloat(afterColon(line), 64)
			obs.Rate, obs.HasRate = rate, err == nil
		}
		return true
	})
	return obs, err
}

type Verdict struct {
	Name bool
	Date bool
	Rate bool
}

func Compare(exp *Expected, obs Observed) Verdict {
	return Verdict{
		Name: obs.HasName && obs.Name == exp.Name,
		Date: obs.HasDate && obs.Date.Equal(exp.Date),
		Rate: obs.HasRate && obs.Rate == exp.Rate,
	}
}

func (v Verdict) Passed() bool {
	return v.Name && v.Date && v.Rate
}

// Failed names the fields that did not match.
func (v Verdict) Failed() []string {
	var failed []string
	if !v.Name {
		failed = append(failed, "name")
	}
	if !v.Date {
		failed = append(failed, "date")
	}
	if !v.Rate {
		failed = append(failed, "rate")
	}
	return failed
}

func (v Verdict) Err() error {
	if v.Passed() {
		return nil
	}
	return grading.New(grading.KindValidationMismatch, stage, fmt.Sprintf(
		"values have not been handled successfully (%s): name: %t, date: %t, rate: %t",
		strings.Join(v.Failed(), ", "), v.Name, v.Date, v.Rate))
}
