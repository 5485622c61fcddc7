//go:build darwin || freebsd || linux

package build

import (
	"reflect"
	"slices"
	"strings"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// Unit is a loaded shared library whose declared functions can be called.
type Unit struct {
	Path   string
	handle uintptr
	funcs  map[string]reflect.Value
	protos map[string]Prototype
}

func openUnit(path string, protos []Prototype) (*Unit, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	u := &Unit{
		Path:   path,
		handle: handle,
		funcs:  make(map[string]reflect.Value, len(protos)),
		protos: make(map[string]Prototype, len(protos)),
	}
	for _, proto := range protos {
		if err := u.bind(proto); err != nil {
			u.Close()
			return nil, err
		}
	}
	return u, nil
}

func (u *Unit) bind(proto Prototype) error {
	typ, err := proto.FuncType()
	if err != nil {
		return err
	}
	sym, err := purego.Dlsym(u.handle, proto.Name)
	if err != nil {
		return errors.Wrapf(err, "symbol %s declared but not defined", proto.Name)
	}
	fn := reflect.New(typ)
	purego.RegisterFunc(fn.Interface(), sym)
	u.funcs[proto.Name] = fn.Elem()
	u.protos[proto.Name] = proto
	return nil
}

// Symbols returns the prototypes of every bound function.
func (u *Unit) Symbols() []Prototype {
	out := make([]Prototype, 0, len(u.protos))
	for _, p := range u.protos {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Prototype) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Call invokes a declared function. Arguments are converted to the declared
// parameter types; the result is returned as float64 (0 for void).
func (u *Unit) Call(name string, args ...float64) (float64, error) {
	fn, ok := u.funcs[name]
	if !ok {
		return 0, errors.Errorf("function %s is not declared in the interface", name)
	}
	typ := fn.Type()
	if typ.NumIn() != len(args) {
		return 0, errors.Errorf("%s expects %d arguments, got %d", u.protos[name], typ.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = convertArg(arg, typ.In(i))
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return 0, nil
	}
	return toFloat(out[0]), nil
}

func (u *Unit) Close() error {
	if u.handle == 0 {
		return nil
	}
	err := purego.Dlclose(u.handle)
	u.handle = 0
	u.funcs = nil
	return err
}

func convertArg(arg float64, typ reflect.Type) reflect.Value {
	v := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Bool:
		v.SetBool(arg != 0)
	case reflect.Float32, reflect.Float64:
		v.SetFloat(arg)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(arg))
	default:
		v.SetInt(int64(arg))
	}
	return v
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default:
		return float64(v.Int())
	}
}
