package sandbox

import (
	"context"
	"io"
	"os"

	"github.com/criyle/go-sandbox/container"
	"github.com/criyle/go-sandbox/pkg/cgroup"
	"github.com/criyle/go-sandbox/runner"
	"github.com/cutekitek/rankode-grader/internal/repository/dto"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/pkg/errors"
)

const (
	programPath = containerWorkDir + "/runner"

	defaultMemoryLimit = 256 * 1024 * 1024
	defaultFileSize    = 64 * 1024 * 1024
)

// Init must run first thing in main: the sandbox re-executes the current
// binary to start container init processes.
func Init() error {
	return container.Init()
}

type SandboxRunnerConfig struct {
	ContainersPoolSize int
	CgroupPrefix       string
}

// SandboxRunner runs built programs inside a pool of go-sandbox containers,
// one program per container at a time.
type SandboxRunner struct {
	Config     SandboxRunnerConfig
	rootCG     cgroup.Cgroup
	containers chan *pooledContainer
}

func NewSandboxRunner(cfg SandboxRunnerConfig) *SandboxRunner {
	if cfg.ContainersPoolSize <= 0 {
		cfg.ContainersPoolSize = 1
	}
	if cfg.CgroupPrefix == "" {
		cfg.CgroupPrefix = "rankode-grader"
	}
	return &SandboxRunner{
		Config:     cfg,
		containers: make(chan *pooledContainer, cfg.ContainersPoolSize),
	}
}

func (r *SandboxRunner) Init() error {
	if cgroup.DetectType() == cgroup.TypeV2 {
		cgroup.EnableV2Nesting()
	}
	ct, err := cgroup.GetAvailableController()
	if err != nil {
		return errors.Wrap(err, "cgroup.GetAvailableController")
	}
	r.rootCG, err = cgroup.New(r.Config.CgroupPrefix, ct)
	if err != nil {
		return errors.Wrap(err, "cgroup.New")
	}
	return r.fillPool()
}

func (r *SandboxRunner) Close() {
	for closed := 0; closed < r.Config.ContainersPoolSize; closed++ {
		c := <-r.containers
		c.destroy()
	}
	if r.rootCG != nil {
		r.rootCG.Destroy()
	}
}

func (r *SandboxRunner) Run(ctx context.Context, req *dto.RunRequest) (*dto.RunResult, error) {
	var c *pooledContainer
	select {
	case c = <-r.containers:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() {
		r.containers <- c
	}()
	if err := c.Reset(); err != nil {
		return nil, errors.Wrap(err, "failed to reset container")
	}
	if err := installProgram(c, req.Binary); err != nil {
		return nil, errors.Wrap(err, "failed to install program")
	}
	if err := c.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping container")
	}

	memoryLimit := int64(req.MemoryLimit)
	if memoryLimit <= 0 {
		memoryLimit = defaultMemoryLimit
	}
	res, err := r.execute(ctx, c, execParams{
		Args:          append([]string{programPath}, req.Args...),
		MaxFileSize:   defaultFileSize,
		Timeout:       req.Timeout,
		MemoryLimit:   memoryLimit,
		Input:         req.Input,
		MaxOutputSize: req.MaxOutputSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute program")
	}
	return &dto.RunResult{
		Status:        runStatus(res),
		ExitStatus:    res.ExitStatus,
		Output:        res.Output,
		Error:         res.Error,
		ExecutionTime: res.Time,
		MemoryUsage:   int(res.Memory),
	}, nil
}

func runStatus(res *execResult) models.RunStatus {
	switch res.Status {
	case runner.StatusNormal:
		if res.ExitStatus != 0 {
			return models.RunStatusRunningError
		}
		return models.RunStatusOk
	case runner.StatusMemoryLimitExceeded:
		return models.RunStatusOutOfMemory
	case runner.StatusTimeLimitExceeded:
		return models.RunStatusTimeout
	case runner.StatusOutputLimitExceeded:
		return models.RunStatusOutputOverflow
	default:
		return models.RunStatusRunningError
	}
}

// installProgram copies the host built program into the container work dir.
func installProgram(env container.Environment, binary string) error {
	program, err := os.Open(binary)
	if err != nil {
		return errors.Wrap(err, "failed to open program")
	}
	defer program.Close()

	files, err := env.Open([]container.OpenCmd{
		{Path: programPath, Flag: os.O_WRONLY | os.O_CREATE | os.O_TRUNC, Perm: 0755},
	})
	if err != nil {
		return errors.Wrap(err, "failed to open files in container")
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	_, err = io.Copy(files[0], program)
	return errors.Wrap(err, "failed to copy program")
}
