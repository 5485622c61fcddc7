package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cutekitek/rankode-grader/internal/header"
	"github.com/cutekitek/rankode-grader/internal/mappers"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/cutekitek/rankode-grader/internal/task"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errFailed = errors.New("submission failed")

var (
	gradeTask string
	gradeJSON bool
)

var gradeCmd = &cobra.Command{
	Use:   "grade DIR",
	Short: "Grade the submission in DIR",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrade,
}

func init() {
	gradeCmd.Flags().StringVarP(&gradeTask, "task", "t", "", "task file, or a task name looked up in TASKS_PATH")
	gradeCmd.Flags().BoolVar(&gradeJSON, "json", false, "print the report as JSON")
	gradeCmd.MarkFlagRequired("task")
}

func loadTask(ref string) (*task.Task, error) {
	if _, err := os.Stat(ref); err == nil {
		return task.Load(ref)
	}
	return task.Load(filepath.Join(cfg.TasksPath, ref+".yaml"))
}

func runGrade(cmd *cobra.Command, args []string) error {
	t, err := loadTask(gradeTask)
	if err != nil {
		return err
	}
	r, cleanup, err := newRunner(1)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := newGrader(r).Grade(cmd.Context(), args[0], t)
	if err != nil {
		return err
	}
	if gradeJSON {
		req := &models.GradeRequest{Id: report.ID.String(), Task: t.Name}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(mappers.ReportToGradeResponse(req, report, nil)); err != nil {
			return err
		}
	} else if err := report.Write(cmd.OutOrStdout()); err != nil {
		return err
	}
	if !report.Passed() {
		return errFailed
	}
	return nil
}

var headerCmd = &cobra.Command{
	Use:   "header FILE...",
	Short: "Validate the metadata header of each file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHeader,
}

func runHeader(cmd *cobra.Command, args []string) error {
	failed := false
	for _, path := range args {
		ok, err := header.Check(path)
		switch {
		case err != nil:
			cmd.Printf("ERROR %s: %v\n", path, err)
			failed = true
		case ok:
			cmd.Printf("OK    %s\n", path)
		default:
			cmd.Printf("FAIL  %s: missing or corrupt data in header\n", path)
			failed = true
		}
	}
	if failed {
		return errFailed
	}
	return nil
}
