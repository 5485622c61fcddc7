//go:build !(darwin || freebsd || linux)

package build

import "github.com/pkg/errors"

type Unit struct {
	Path string
}

func openUnit(path string, protos []Prototype) (*Unit, error) {
	return nil, errors.New("loading shared libraries is not supported on this platform")
}

func (u *Unit) Symbols() []Prototype { return nil }

func (u *Unit) Call(name string, args ...float64) (float64, error) {
	return 0, errors.New("loading shared libraries is not supported on this platform")
}

func (u *Unit) Close() error { return nil }
