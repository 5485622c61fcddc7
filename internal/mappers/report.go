package mappers

import (
	"github.com/cutekitek/rankode-grader/internal/grader"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
)

func ReportToGradeResponse(req *models.GradeRequest, report *grader.Report, logs []string) *models.GradeResponse {
	resp := &models.GradeResponse{
		Id:       req.Id,
		ReportId: report.ID.String(),
		Passed:   report.Passed(),
		Checks:   make([]models.CheckStatus, 0, len(report.Checks)),
		Logs:     logs,
	}
	for _, check := range report.Checks {
		status := models.CheckStatus{Name: check.Name, Passed: check.Passed}
		if !check.Passed {
			status.Kind = check.Kind.String()
			status.Message = check.Message
		}
		resp.Checks = append(resp.Checks, status)
	}
	return resp
}

func ErrorToGradeResponse(req *models.GradeRequest, err error) *models.GradeResponse {
	return &models.GradeResponse{
		Id:     req.Id,
		Error:  err.Error(),
		Checks: []models.CheckStatus{},
	}
}
