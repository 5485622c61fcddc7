package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cutekitek/rankode-grader/internal/build"
	"github.com/cutekitek/rankode-grader/internal/classify"
	"github.com/cutekitek/rankode-grader/internal/grader"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/cutekitek/rankode-grader/internal/runner/process"
	"github.com/cutekitek/rankode-grader/internal/task"
	"github.com/cutekitek/rankode-grader/pkg/shell"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	files    map[string]string
	uploaded []string
	failGet  bool
}

func (m *memStorage) Download(ctx context.Context, prefix, dir string) (int, error) {
	if m.failGet {
		return 0, errors.New("bucket unavailable")
	}
	count := 0
	for name, content := range m.files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (m *memStorage) Upload(ctx context.Context, dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		m.uploaded = append(m.uploaded, prefix+"/"+e.Name())
	}
	return m.uploaded, nil
}

type noCompiler struct{}

func (noCompiler) BuildLoadable(ctx context.Context, source, iface, out string) error {
	return &build.CompileError{ExitError: &shell.ExitError{StatusCode: 1}}
}

func (noCompiler) BuildExecutable(ctx context.Context, source, out string) error {
	return &build.CompileError{ExitError: &shell.ExitError{StatusCode: 1}}
}

func newWorker(t *testing.T, storage *memStorage) *Worker {
	tasks := map[string]*task.Task{
		"review": {Name: "review", Classify: &task.Classify{File: "main.c", Rules: classify.Template{
			{Pattern: "int i, j;", Active: false},
		}}},
	}
	w := NewWorker(grader.NewGrader(noCompiler{}, process.NewProcessRunner()), tasks, storage)
	w.TempDir = t.TempDir()
	return w
}

func TestProcess(t *testing.T) {
	storage := &memStorage{files: map[string]string{"main.c": "int run() {\n    // int i, j;\n    return 0;\n}\n"}}
	w := newWorker(t, storage)

	resp := w.Process(context.Background(), &models.GradeRequest{Id: "1", Task: "review", Prefix: "sub/1"})
	assert.Empty(t, resp.Error)
	assert.True(t, resp.Passed)
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, "classify:main.c", resp.Checks[0].Name)
	require.Len(t, resp.Logs, 1)
	assert.True(t, strings.HasPrefix(resp.Logs[0], "sub/1/test-results/"+resp.ReportId))

	entries, err := os.ReadDir(w.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "job dir must be removed")
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name    string
		storage *memStorage
		task    string
		err     string
	}{
		{name: "unknown task", storage: &memStorage{}, task: "nope", err: `unknown task "nope"`},
		{name: "empty submission", storage: &memStorage{}, task: "review", err: `submission "sub/1" is empty`},
		{name: "download failure", storage: &memStorage{failGet: true}, task: "review", err: "bucket unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := newWorker(t, tt.storage).Process(context.Background(), &models.GradeRequest{Id: "1", Task: tt.task, Prefix: "sub/1"})
			assert.Equal(t, "1", resp.Id)
			assert.False(t, resp.Passed)
			assert.Equal(t, tt.err, resp.Error)
		})
	}
}
