package main

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/cutekitek/rankode-grader/internal/build"
	"github.com/cutekitek/rankode-grader/internal/config"
	"github.com/cutekitek/rankode-grader/internal/grader"
	"github.com/cutekitek/rankode-grader/internal/runner"
	"github.com/cutekitek/rankode-grader/internal/runner/process"
	"github.com/cutekitek/rankode-grader/internal/runner/sandbox"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "grader",
	Short:         "Grades C submissions against task definitions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewConfig()
		if err != nil {
			return err
		}
		setLogLevel(cfg.LogLevel)
		return nil
	},
}

func panicErr(err error) {
	if err != nil {
		panic(err)
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case "info":
		slog.SetLogLoggerLevel(slog.LevelInfo)
	case "warn":
		slog.SetLogLoggerLevel(slog.LevelWarn)
	case "error":
		slog.SetLogLoggerLevel(slog.LevelError)
	default:
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}
}

// newRunner returns the configured execution backend and its cleanup.
func newRunner(poolSize int) (runner.Runner, func(), error) {
	if cfg.Runner != config.RunnerSandbox {
		return process.NewProcessRunner(), func() {}, nil
	}
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}
	r := sandbox.NewSandboxRunner(sandbox.SandboxRunnerConfig{ContainersPoolSize: poolSize})
	if err := r.Init(); err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

func newGrader(r runner.Runner) *grader.Grader {
	g := grader.NewGrader(build.NewGCC(cfg.CC, cfg.CompilerFlags(), cfg.BuildTimeout), r)
	g.RunTimeout = cfg.RunTimeout
	g.MaxOutputSize = cfg.MaxOutputSize
	g.MemoryLimit = cfg.MemoryLimit
	return g
}

func init() {
	rootCmd.AddCommand(gradeCmd, headerCmd, workerCmd, enqueueCmd)
}

func main() {
	// container init processes re-enter here and never return
	panicErr(sandbox.Init())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
