package behavior

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cutekitek/rankode-grader/internal/build"
	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/cutekitek/rankode-grader/internal/runner/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const argsContent = "#alice\n#doe12345\n#15.03.2001\n#0.19\n"

func TestParseArgs(t *testing.T) {
	exp, err := ParseArgs(strings.NewReader(argsContent))
	require.NoError(t, err)
	assert.Equal(t, "Alice.doe12345", exp.Name)
	assert.Equal(t, time.Date(2001, time.March, 15, 0, 0, 0, 0, time.UTC), exp.Date)
	assert.Equal(t, 0.19, exp.Rate)
}

func TestParseArgs_Fragments(t *testing.T) {
	exp, err := ParseArgs(strings.NewReader("  # bob \n\n#mustermann99\n# 01.12.1999 \n#  7.5\n#ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "B.musterma", exp.Name)
	assert.Equal(t, 7.5, exp.Rate)
}

func TestParseArgs_Malformed(t *testing.T) {
	for _, input := range []string{
		"",
		"#alice\n#doe\n#15.03.2001\n",
		"#alice\n#doe\n#2001-03-15\n#0.19\n",
		"#alice\n#doe\n#15.03.2001\n#zero\n",
		"#\n#doe\n#15.03.2001\n#0.19\n",
	} {
		_, err := ParseArgs(strings.NewReader(input))
		assert.Error(t, err, input)
	}
}

func TestParseOutput(t *testing.T) {
	obs, err := ParseOutput(strings.NewReader("Hallo!\nName: Alice. doe12345\nGeburtsdatum: 15.03.2001\nSteuersatz: 0.19\n"), DefaultLabels)
	require.NoError(t, err)
	assert.Equal(t, "Alice.doe12345", obs.Name)
	assert.True(t, obs.HasDate)
	assert.Equal(t, 0.19, obs.Rate)

	obs, err = ParseOutput(strings.NewReader("NAME:Alice.doe12345\ndate-of-birth: 15.3.2001\nrate: 0.190\n"), DefaultLabels)
	require.NoError(t, err)
	assert.True(t, obs.HasName)
	assert.False(t, obs.HasDate, "single digit month does not match the layout")
	assert.True(t, obs.HasRate)
	assert.Equal(t, 0.19, obs.Rate)
}

func TestParseOutput_LongLine(t *testing.T) {
	name := "Alice." + strings.Repeat("d", 70000)
	output := strings.Repeat("=", 100*1024) + "\nName: " + name + "\nGeburtsdatum: 15.03.2001\nSteuersatz: 0.19\n"
	obs, err := ParseOutput(strings.NewReader(output), DefaultLabels)
	require.NoError(t, err)
	assert.Equal(t, name, obs.Name)
	assert.True(t, obs.HasDate)
	assert.True(t, obs.HasRate)
}

func TestCompare(t *testing.T) {
	exp, err := ParseArgs(strings.NewReader(argsContent))
	require.NoError(t, err)

	tests := []struct {
		name   string
		output string
		failed []string
	}{
		{name: "all match", output: "Name: Alice.doe12345\nGeburtsdatum: 15.03.2001\nSteuersatz: 0.19\n"},
		{name: "wrong name", output: "Name: alice.doe12345\nGeburtsdatum: 15.03.2001\nSteuersatz: 0.19\n", failed: []string{"name"}},
		{name: "wrong date", output: "Name: Alice.doe12345\nGeburtsdatum: 16.03.2001\nSteuersatz: 0.19\n", failed: []string{"date"}},
		{name: "wrong rate", output: "Name: Alice.doe12345\nGeburtsdatum: 15.03.2001\nSteuersatz: 19%\n", failed: []string{"rate"}},
		{name: "nothing printed", output: "", failed: []string{"name", "date", "rate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := ParseOutput(strings.NewReader(tt.output), DefaultLabels)
			require.NoError(t, err)
			verdict := Compare(exp, obs)
			assert.Equal(t, tt.failed, verdict.Failed())
			if tt.failed == nil {
				assert.NoError(t, verdict.Err())
				return
			}
			err = verdict.Err()
			assert.Equal(t, grading.KindValidationMismatch, grading.KindOf(err))
			for _, field := range tt.failed {
				assert.Contains(t, err.Error(), field)
			}
		})
	}
}

// scriptCompiler "compiles" by writing a shell script in place of the program.
type scriptCompiler struct {
	script string
}

func (s *scriptCompiler) BuildLoadable(ctx context.Context, source, iface, out string) error {
	return os.ErrInvalid
}

func (s *scriptCompiler) BuildExecutable(ctx context.Context, source, out string) error {
	return os.WriteFile(out, []byte("#!/bin/sh\n"+s.script+"\n"), 0o755)
}

func newSubmission(t *testing.T, args string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main() { return 0; }\n"), 0o644))
	if args != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ArgsFile), []byte(args), 0o644))
	}
	return dir
}

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name   string
		script string
		kind   grading.Kind
	}{
		{
			name:   "pass",
			script: "cat >/dev/null; echo 'Name: Alice.doe12345'; echo 'Geburtsdatum: 15.03.2001'; echo 'Steuersatz: 0.19'",
		},
		{
			name:   "non-zero exit with correct output",
			script: "echo 'Name: Alice.doe12345'; echo 'Geburtsdatum: 15.03.2001'; echo 'Steuersatz: 0.19'; exit 1",
		},
		{
			name:   "mismatch",
			script: "echo 'Name: Alice.doe12345'; echo 'Geburtsdatum: 15.03.2001'; echo 'Steuersatz: 0.2'",
			kind:   grading.KindValidationMismatch,
		},
		{
			name:   "infinite loop",
			script: "while :; do :; done",
			kind:   grading.KindTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newSubmission(t, argsContent)
			v := NewValidator(build.NewHarness(dir, &scriptCompiler{script: tt.script}), process.NewProcessRunner())
			v.Timeout = 500 * time.Millisecond

			err := v.Validate(context.Background(), "main")
			if tt.kind == grading.KindUnknown {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.kind, grading.KindOf(err), err.Error())
			}
			if tt.kind != grading.KindTimeout {
				_, statErr := os.Stat(v.ResultPath())
				assert.NoError(t, statErr, "result log must be written")
			}
		})
	}
}

func TestValidator_MissingArgs(t *testing.T) {
	dir := newSubmission(t, "")
	compiler := &scriptCompiler{script: "exit 0"}
	err := NewValidator(build.NewHarness(dir, compiler), process.NewProcessRunner()).Validate(context.Background(), "main")
	assert.Equal(t, grading.KindMissingFile, grading.KindOf(err))
}

func TestValidator_MalformedArgs(t *testing.T) {
	for _, args := range []string{
		"#alice\n#doe\n",
		"#alice\n#doe\n#2001-03-15\n#0.19\n",
	} {
		dir := newSubmission(t, args)
		compiler := &scriptCompiler{script: "exit 0"}
		v := NewValidator(build.NewHarness(dir, compiler), process.NewProcessRunner())
		err := v.Validate(context.Background(), "main")
		require.Error(t, err, args)
		assert.Equal(t, grading.KindMissingFile, grading.KindOf(err), args)
		assert.Contains(t, err.Error(), "argument file for execution is malformed")
	}
}

func TestValidator_StartFailure(t *testing.T) {
	dir := newSubmission(t, argsContent)
	v := NewValidator(build.NewHarness(dir, failingExec{}), process.NewProcessRunner())
	err := v.Validate(context.Background(), "main")
	assert.Equal(t, grading.KindExecutionFailure, grading.KindOf(err))
	_, statErr := os.Stat(v.ResultPath())
	assert.True(t, os.IsNotExist(statErr))
}

// failingExec produces a program the kernel refuses to execute.
type failingExec struct{}

func (failingExec) BuildLoadable(ctx context.Context, source, iface, out string) error {
	return os.ErrInvalid
}

func (failingExec) BuildExecutable(ctx context.Context, source, out string) error {
	return os.WriteFile(out, []byte{0x7f, 'E', 'L', 'F'}, 0o755)
}

func TestValidator_GCC(t *testing.T) {
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc is not installed")
	}
	dir := newSubmission(t, argsContent)
	program := `#include <stdio.h>
#include <ctype.h>
#include <string.h>

static void field(char *dst, size_t n) {
    char line[128];
    if (!fgets(line, sizeof line, stdin)) { dst[0] = 0; return; }
    line[strcspn(line, "\r\n")] = 0;
    strncpy(dst, line + 1, n - 1);
    dst[n - 1] = 0;
}

int main() {
    char first[64], last[64], date[64], rate[64];
    field(first, sizeof first);
    field(last, sizeof last);
    field(date, sizeof date);
    field(rate, sizeof rate);
    last[8] = 0;
    printf("Name: %c.%s\n", toupper(first[0]), last);
    printf("Geburtsdatum: %s\n", date);
    printf("Steuersatz: %s\n", rate);
    return 0;
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte(program), 0o644))

	v := NewValidator(build.NewHarness(dir, build.NewGCC("gcc", nil, time.Minute)), process.NewProcessRunner())
	require.NoError(t, v.Validate(context.Background(), "main"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main( {"), 0o644))
	err := v.Validate(context.Background(), "main")
	assert.Equal(t, grading.KindBuildFailure, grading.KindOf(err))
}
