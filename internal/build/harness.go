package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/pkg/errors"
)

const (
	stage = "build"

	ProgramName = "runner"
)

// extensions of build products left behind by any toolchain
var libraryExtensions = []string{".so", ".dylib", ".dll", ".pyd"}

func libraryExtension() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// ArtifactPrefix marks files generated from the source <name>.c.
func ArtifactPrefix(name string) string {
	return name + "_"
}

// CanonicalName is the filename a loadable unit for <name>.c is loaded from.
func CanonicalName(name string) string {
	return ArtifactPrefix(name) + libraryExtension()
}

// IsArtifact reports whether filename is a build product of <name>.c,
// whatever toolchain specific suffix it carries.
func IsArtifact(filename, name string) bool {
	if !strings.HasPrefix(filename, ArtifactPrefix(name)) {
		return false
	}
	ext := filepath.Ext(filename)
	for _, known := range libraryExtensions {
		if strings.EqualFold(ext, known) {
			return true
		}
	}
	return false
}

// Harness builds submissions living in Dir. It assumes exclusive access to
// the directory while a build is running.
type Harness struct {
	Dir      string
	Compiler Compiler
}

func NewHarness(dir string, compiler Compiler) *Harness {
	return &Harness{Dir: dir, Compiler: compiler}
}

func (h *Harness) path(filename string) string {
	return filepath.Join(h.Dir, filename)
}

func (h *Harness) requireFiles(filenames ...string) error {
	for _, filename := range filenames {
		if _, err := os.Stat(h.path(filename)); err != nil {
			if os.IsNotExist(err) {
				return grading.MissingFile(stage, filename)
			}
			return grading.Wrap(err, grading.KindMissingFile, stage, filename+" is not accessible")
		}
	}
	return nil
}

// Clean removes every build product of <name>.c.
func (h *Harness) Clean(name string) error {
	entries, err := os.ReadDir(h.Dir)
	if err != nil {
		return errors.Wrap(err, "failed to list submission dir")
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsArtifact(entry.Name(), name) {
			continue
		}
		slog.Debug("removing stale artifact", "file", entry.Name())
		if err := os.Remove(h.path(entry.Name())); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove %s", entry.Name())
		}
	}
	return nil
}

// normalize renames the build product of <name>.c to its canonical name.
func (h *Harness) normalize(name string) (string, error) {
	canonical := h.path(CanonicalName(name))
	entries, err := os.ReadDir(h.Dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to list submission dir")
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == CanonicalName(name) || !IsArtifact(entry.Name(), name) {
			continue
		}
		if err := os.Rename(h.path(entry.Name()), canonical); err != nil {
			return "", errors.Wrapf(err, "failed to rename %s", entry.Name())
		}
	}
	if _, err := os.Stat(canonical); err != nil {
		return "", errors.Wrap(err, "compiler produced no library")
	}
	return canonical, nil
}

// Load compiles <name>.c against the declarations of <name>.h and loads the
// result. Stale artifacts are removed first, so repeated runs never pick up
// a previous build.
func (h *Harness) Load(ctx context.Context, name string) (*Unit, error) {
	source, iface := name+".c", name+".h"
	if err := h.requireFiles(source, iface); err != nil {
		return nil, err
	}
	if err := h.Clean(name); err != nil {
		return nil, grading.Wrap(err, grading.KindBuildFailure, stage, "stale build artifacts could not be removed")
	}

	decls, err := os.ReadFile(h.path(iface))
	if err != nil {
		return nil, grading.Wrap(err, grading.KindMissingFile, stage, iface+" could not be read")
	}
	protos, err := ParsePrototypes(ctx, decls)
	if err != nil {
		return nil, grading.Wrap(err, grading.KindBuildFailure, stage, "interface declarations could not be parsed")
	}

	product, err := os.CreateTemp(h.Dir, ArtifactPrefix(name)+"*"+libraryExtension())
	if err != nil {
		return nil, grading.Wrap(err, grading.KindBuildFailure, stage, "build output could not be created")
	}
	product.Close()

	if err := h.Compiler.BuildLoadable(ctx, h.path(source), h.path(iface), product.Name()); err != nil {
		os.Remove(product.Name())
		return nil, compileFailure(err)
	}

	canonical, err := h.normalize(name)
	if err != nil {
		return nil, grading.Wrap(err, grading.KindBuildFailure, stage, "build output could not be normalized")
	}
	abs, err := filepath.Abs(canonical)
	if err != nil {
		return nil, grading.Wrap(err, grading.KindBuildFailure, stage, "build output could not be located")
	}
	unit, err := openUnit(abs, protos)
	if err != nil {
		return nil, grading.Wrap(err, grading.KindBuildFailure, stage, "compiled library could not be loaded")
	}
	slog.Debug("unit loaded", "path", abs, "symbols", len(protos))
	return unit, nil
}

// BuildProgram compiles <name>.c into a standalone executable and returns
// its path.
func (h *Harness) BuildProgram(ctx context.Context, name string) (string, error) {
	source := name + ".c"
	if err := h.requireFiles(source); err != nil {
		return "", err
	}
	out := h.path(ProgramName)
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return "", grading.Wrap(err, grading.KindBuildFailure, stage, "stale program could not be removed")
	}
	if err := h.Compiler.BuildExecutable(ctx, h.path(source), out); err != nil {
		return "", compileFailure(err)
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return "", grading.Wrap(err, grading.KindBuildFailure, stage, "program could not be located")
	}
	return abs, nil
}

func compileFailure(err error) error {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		slog.Debug("compilation failed", "status", compileErr.StatusCode, "logs", compileErr.ErrorLogs)
		return grading.Wrap(errors.New(compileErr.ErrorLogs), grading.KindBuildFailure, stage, "compilation of C code failed")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return grading.Wrap(err, grading.KindBuildFailure, stage, "compilation timed out")
	}
	return grading.Wrap(err, grading.KindBuildFailure, stage, "compiler could not be run")
}
