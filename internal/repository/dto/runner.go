package dto

import (
	"time"

	"github.com/cutekitek/rankode-grader/internal/repository/models"
)

type RunRequest struct {
	// absolute path of the program to execute
	Binary  string
	Args    []string
	Dir     string
	Input   string
	Timeout time.Duration
	// В байтах
	MemoryLimit   int
	MaxOutputSize int
}

type RunResult struct {
	Status        models.RunStatus
	ExitStatus    int
	Output        string
	Error         string
	ExecutionTime time.Duration
	MemoryUsage   int
}
