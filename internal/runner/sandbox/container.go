package sandbox

import (
	"os"
	"sync/atomic"
	"syscall"

	"github.com/criyle/go-sandbox/container"
	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	containerWorkDir = "/w"
	firstSandboxUID  = 10000
)

type pooledContainer struct {
	container.Environment
	root string
}

func (c *pooledContainer) destroy() {
	c.Destroy()
	os.RemoveAll(c.root)
}

// newContainer builds a container rooted at root with the host toolchain
// mounted read only and a tmpfs work dir.
func newContainer(root string) (container.Environment, error) {
	mb := mount.NewBuilder().
		WithBind("/bin", "bin", true).
		WithBind("/lib", "lib", true).
		WithBind("/lib64", "lib64", true).
		WithBind("/usr", "usr", true).
		WithBind("/etc/ld.so.cache", "etc/ld.so.cache", true).
		WithProc().
		WithBind("/dev/null", "dev/null", false).
		WithTmpfs("tmp", "size=64m,nr_inodes=4k").
		WithTmpfs(containerWorkDir[1:], "size=32m,nr_inodes=4k").
		FilterNotExist()

	cloneFlags := unix.CLONE_NEWIPC | unix.CLONE_NEWNET | unix.CLONE_NEWNS |
		unix.CLONE_NEWPID | unix.CLONE_NEWUSER | unix.CLONE_NEWUTS

	b := container.Builder{
		Root:          root,
		WorkDir:       containerWorkDir,
		Mounts:        mb.Mounts,
		Stderr:        os.Stderr,
		CredGenerator: newCredGen(),
		CloneFlags:    uintptr(cloneFlags),
	}
	return b.Build()
}

func (r *SandboxRunner) fillPool() error {
	for i := 0; i < r.Config.ContainersPoolSize; i++ {
		root, err := os.MkdirTemp("", r.Config.CgroupPrefix+"-container-")
		if err != nil {
			return errors.Wrap(err, "failed to create temp dir")
		}
		env, err := newContainer(root)
		if err != nil {
			os.RemoveAll(root)
			return errors.Wrap(err, "failed to create container")
		}
		r.containers <- &pooledContainer{Environment: env, root: root}
	}
	return nil
}

// credGen hands out a distinct uid/gid per container.
type credGen struct {
	cur uint32
}

func newCredGen() *credGen {
	return &credGen{cur: firstSandboxUID}
}

func (c *credGen) Get() syscall.Credential {
	n := atomic.AddUint32(&c.cur, 1)
	return syscall.Credential{Uid: n, Gid: n}
}
