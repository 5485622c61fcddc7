package build

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cutekitek/rankode-grader/pkg/shell"
	"github.com/pkg/errors"
)

// Compiler turns a single C source into a build product.
type Compiler interface {
	// BuildLoadable produces a shared library at out exposing the functions
	// declared in iface.
	BuildLoadable(ctx context.Context, source, iface, out string) error
	// BuildExecutable produces a standalone program at out.
	BuildExecutable(ctx context.Context, source, out string) error
}

// CompileError is returned when the compiler ran and rejected the source.
type CompileError struct {
	*shell.ExitError
}

type GCC struct {
	Path    string
	Flags   []string
	Timeout time.Duration
}

func NewGCC(path string, flags []string, timeout time.Duration) *GCC {
	if path == "" {
		path = "gcc"
	}
	return &GCC{Path: path, Flags: flags, Timeout: timeout}
}

func (g *GCC) BuildLoadable(ctx context.Context, source, iface, out string) error {
	args := append([]string{"-shared", "-fPIC", "-I", filepath.Dir(iface)}, g.Flags...)
	args = append(args, "-o", out, source, "-lm")
	return g.run(ctx, filepath.Dir(source), args)
}

func (g *GCC) BuildExecutable(ctx context.Context, source, out string) error {
	args := append([]string{}, g.Flags...)
	args = append(args, "-o", out, source, "-lm")
	return g.run(ctx, filepath.Dir(source), args)
}

func (g *GCC) run(ctx context.Context, dir string, args []string) error {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	slog.Debug("invoking compiler", "compiler", g.Path, "args", args)
	err := shell.NewCommand(ctx, dir, g.Path, args...).Run()
	if err == nil {
		return nil
	}
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return &CompileError{ExitError: exitErr}
	}
	return errors.Wrap(err, "failed to execute compiler")
}
