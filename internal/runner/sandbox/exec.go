package sandbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/criyle/go-sandbox/container"
	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/criyle/go-sandbox/runner"
	internalrunner "github.com/cutekitek/rankode-grader/internal/runner"
	"github.com/pkg/errors"
)

const (
	stackLimit = 128 * 1024 * 1024
	openFiles  = 256
)

type execParams struct {
	Args          []string
	MaxFileSize   int64
	Timeout       time.Duration
	MemoryLimit   int64
	Input         string
	MaxOutputSize int
}

type execResult struct {
	Status     runner.Status
	ExitStatus int
	Time       time.Duration
	Memory     runner.Size
	Output     string
	Error      string
}

type containerRun struct {
	container.Environment
	container.ExecveParam
}

func (r *containerRun) Run(ctx context.Context) runner.Result {
	return r.Execve(ctx, r.ExecveParam)
}

// pipes holds both ends of the standard streams of one run.
type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func openPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, errors.Wrap(err, "failed to open stdin pipe")
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.close()
		return nil, errors.Wrap(err, "failed to open stdout pipe")
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.close()
		return nil, errors.Wrap(err, "failed to open stderr pipe")
	}
	return p, nil
}

// closeChildEnds releases the ends handed to the program, so the readers
// see EOF once it exits.
func (p *pipes) closeChildEnds() {
	for _, f := range []*os.File{p.stdinR, p.stdoutW, p.stderrW} {
		if f != nil {
			f.Close()
		}
	}
}

func (p *pipes) close() {
	p.closeChildEnds()
	for _, f := range []*os.File{p.stdinW, p.stdoutR, p.stderrR} {
		if f != nil {
			f.Close()
		}
	}
}

// execute runs params.Args in env inside a fresh child cgroup.
func (r *SandboxRunner) execute(parent context.Context, env container.Environment, params execParams) (*execResult, error) {
	cg, err := r.rootCG.Random("run")
	if err != nil {
		return nil, errors.Wrap(err, "cgroup.Random")
	}
	defer cg.Destroy()
	if params.MemoryLimit > 0 {
		if err := cg.SetMemoryLimit(uint64(params.MemoryLimit)); err != nil {
			slog.Warn("failed to set cgroup memory limit", "error", err)
		}
	}
	cgDir, err := cg.Open()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cgroup")
	}
	defer cgDir.Close()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if params.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, params.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	p, err := openPipes()
	if err != nil {
		return nil, err
	}
	defer p.close()

	stdout := internalrunner.NewOutputBuffer(params.MaxOutputSize, cancel)
	stderr := internalrunner.NewOutputBuffer(params.MaxOutputSize, cancel)
	wg := &sync.WaitGroup{}
	syncFunc := func(pid int) error {
		if err := cg.AddProc(pid); err != nil {
			return err
		}
		wg.Add(2)
		go feed(p.stdinW, params.Input)
		go drain(wg, p.stdoutR, stdout)
		go drain(wg, p.stderrR, stderr)
		return nil
	}

	cpuSeconds := uint64(params.Timeout.Seconds())
	rlims := rlimit.RLimits{
		CPU:      cpuSeconds + 1,
		CPUHard:  cpuSeconds + 2,
		FileSize: uint64(params.MaxFileSize),
		Stack:    stackLimit,
		Data:     uint64(params.MemoryLimit),
		OpenFile: openFiles,
	}
	run := containerRun{
		Environment: env,
		ExecveParam: container.ExecveParam{
			Args:     params.Args,
			Env:      []string{"PATH=/usr/local/bin:/usr/bin:/bin"},
			Files:    []uintptr{p.stdinR.Fd(), p.stdoutW.Fd(), p.stderrW.Fd()},
			RLimits:  rlims.PrepareRLimit(),
			SyncFunc: syncFunc,
			CgroupFD: cgDir.Fd(),
		},
	}

	res := run.Run(ctx)
	p.closeChildEnds()
	wg.Wait()

	out := &execResult{
		Status:     res.Status,
		ExitStatus: res.ExitStatus,
		Time:       res.Time,
		Memory:     res.Memory,
		Output:     stdout.String(),
		Error:      stderr.String(),
	}
	if cpu, err := cg.CPUUsage(); err == nil {
		out.Time = time.Duration(cpu)
	}
	if mem, err := cg.MemoryMaxUsage(); err == nil {
		out.Memory = runner.Size(mem)
	}
	switch {
	case stdout.Overflowed() || stderr.Overflowed():
		out.Status = runner.StatusOutputLimitExceeded
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && out.Status != runner.StatusNormal:
		out.Status = runner.StatusTimeLimitExceeded
	}

	slog.Debug("execution result", "status", out.Status, "exitStatus", out.ExitStatus, "memory", out.Memory,
		"error", res.Error, "stderr", out.Error, "time", out.Time)
	return out, nil
}

// feed writes the program input and closes stdin. A program that exits
// without reading it breaks the pipe, which ends the copy.
func feed(w *os.File, input string) {
	defer w.Close()
	io.Copy(w, strings.NewReader(input))
}

// drain reads a stream until EOF. After an overflow the rest is discarded
// so the program never blocks on a full pipe.
func drain(wg *sync.WaitGroup, r *os.File, out *internalrunner.OutputBuffer) {
	defer wg.Done()
	if _, err := io.Copy(out, r); err != nil {
		io.Copy(io.Discard, r)
	}
}
