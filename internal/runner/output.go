package runner

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrOutputOverflow = errors.New("output is too big")

// OutputBuffer collects program output up to a limit. The first write past
// the limit keeps what fits, cancels the run and fails.
type OutputBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	max      int
	overflow bool
	cancel   context.CancelFunc
}

// NewOutputBuffer returns a buffer holding at most max bytes, unbounded
// when max is not positive.
func NewOutputBuffer(max int, cancel context.CancelFunc) *OutputBuffer {
	return &OutputBuffer{max: max, cancel: cancel}
}

func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && b.buf.Len()+len(p) > b.max {
		b.buf.Write(p[:b.max-b.buf.Len()])
		if !b.overflow && b.cancel != nil {
			b.cancel()
		}
		b.overflow = true
		return 0, ErrOutputOverflow
	}
	return b.buf.Write(p)
}

func (b *OutputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *OutputBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}
