package worker

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/cutekitek/rankode-grader/internal/behavior"
	"github.com/cutekitek/rankode-grader/internal/grader"
	"github.com/cutekitek/rankode-grader/internal/mappers"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/cutekitek/rankode-grader/internal/task"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Storage moves submissions and their logs between the bucket and disk.
type Storage interface {
	Download(ctx context.Context, prefix, dir string) (int, error)
	Upload(ctx context.Context, dir, prefix string) ([]string, error)
}

// Worker grades queued submissions, each in its own temp directory.
type Worker struct {
	Grader  *grader.Grader
	Tasks   map[string]*task.Task
	Storage Storage
	TempDir string
}

func NewWorker(g *grader.Grader, tasks map[string]*task.Task, storage Storage) *Worker {
	return &Worker{Grader: g, Tasks: tasks, Storage: storage, TempDir: os.TempDir()}
}

func (w *Worker) Process(ctx context.Context, req *models.GradeRequest) *models.GradeResponse {
	resp, err := w.process(ctx, req)
	if err != nil {
		slog.Error("failed to grade submission", "id", req.Id, "task", req.Task, "error", err)
		return mappers.ErrorToGradeResponse(req, err)
	}
	return resp
}

func (w *Worker) process(ctx context.Context, req *models.GradeRequest) (*models.GradeResponse, error) {
	t, ok := w.Tasks[req.Task]
	if !ok {
		return nil, errors.Errorf("unknown task %q", req.Task)
	}

	dir := filepath.Join(w.TempDir, "grade-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create job dir")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove job dir", "dir", dir, "error", err)
		}
	}()

	count, err := w.Storage.Download(ctx, req.Prefix, dir)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.Errorf("submission %q is empty", req.Prefix)
	}
	slog.Debug("submission downloaded", "id", req.Id, "files", count, "dir", dir)

	report, err := w.Grader.Grade(ctx, dir, t)
	if err != nil {
		return nil, err
	}

	logs, err := w.Storage.Upload(ctx, filepath.Join(dir, behavior.ResultsDir),
		path.Join(req.Prefix, behavior.ResultsDir, report.ID.String()))
	if err != nil {
		// the verdict stands without its logs
		slog.Error("failed to upload results", "id", req.Id, "error", err)
	}
	return mappers.ReportToGradeResponse(req, report, logs), nil
}
