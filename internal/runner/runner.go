package runner

import (
	"context"

	"github.com/cutekitek/rankode-grader/internal/repository/dto"
)

type Runner interface {
	// Syncronosly runs a built program. A program that exceeds its limits is not an
	// error: the violation is reported in the result status.
	Run(ctx context.Context, req *dto.RunRequest) (*dto.RunResult, error)
}
