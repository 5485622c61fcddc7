package mappers

import (
	"testing"

	"github.com/cutekitek/rankode-grader/internal/grader"
	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestReportToGradeResponse(t *testing.T) {
	id := uuid.New()
	report := &grader.Report{
		ID:   id,
		Task: "task-1",
		Checks: []grader.CheckResult{
			{Name: "header:main.c", Passed: true},
			{Name: "classify:main.c", Kind: grading.KindValidationMismatch, Message: "not all issues have been fixed correctly"},
		},
	}
	req := &models.GradeRequest{Id: "42", Task: "task-1", Prefix: "sub/42"}

	resp := ReportToGradeResponse(req, report, []string{"sub/42/test-results/lines.txt"})
	assert.Equal(t, "42", resp.Id)
	assert.Equal(t, id.String(), resp.ReportId)
	assert.False(t, resp.Passed)
	assert.Equal(t, []models.CheckStatus{
		{Name: "header:main.c", Passed: true},
		{Name: "classify:main.c", Kind: "validation_mismatch", Message: "not all issues have been fixed correctly"},
	}, resp.Checks)
	assert.Equal(t, []string{"sub/42/test-results/lines.txt"}, resp.Logs)
}

func TestErrorToGradeResponse(t *testing.T) {
	resp := ErrorToGradeResponse(&models.GradeRequest{Id: "7"}, errors.New("unknown task x"))
	assert.Equal(t, "7", resp.Id)
	assert.False(t, resp.Passed)
	assert.Equal(t, "unknown task x", resp.Error)
	assert.Empty(t, resp.Checks)
}
