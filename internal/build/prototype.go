package build

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// Prototype is a function declared in the interface file.
type Prototype struct {
	Name   string
	Return string
	Params []string
}

func (p Prototype) String() string {
	return fmt.Sprintf("%s %s(%s)", p.Return, p.Name, strings.Join(p.Params, ", "))
}

var cTypes = map[string]reflect.Type{
	"char":               reflect.TypeOf(int8(0)),
	"signed char":        reflect.TypeOf(int8(0)),
	"unsigned char":      reflect.TypeOf(uint8(0)),
	"short":              reflect.TypeOf(int16(0)),
	"unsigned short":     reflect.TypeOf(uint16(0)),
	"int":                reflect.TypeOf(int32(0)),
	"signed":             reflect.TypeOf(int32(0)),
	"signed int":         reflect.TypeOf(int32(0)),
	"unsigned":           reflect.TypeOf(uint32(0)),
	"unsigned int":       reflect.TypeOf(uint32(0)),
	"long":               reflect.TypeOf(int64(0)),
	"long int":           reflect.TypeOf(int64(0)),
	"unsigned long":      reflect.TypeOf(uint64(0)),
	"long long":          reflect.TypeOf(int64(0)),
	"unsigned long long": reflect.TypeOf(uint64(0)),
	"float":              reflect.TypeOf(float32(0)),
	"double":             reflect.TypeOf(float64(0)),
	"_Bool":              reflect.TypeOf(false),
	"bool":               reflect.TypeOf(false),
}

// FuncType maps the prototype onto a Go function type purego can bind.
func (p Prototype) FuncType() (reflect.Type, error) {
	in := make([]reflect.Type, 0, len(p.Params))
	for _, param := range p.Params {
		typ, ok := cTypes[param]
		if !ok {
			return nil, errors.Errorf("%s: unsupported parameter type %q", p.Name, param)
		}
		in = append(in, typ)
	}
	var out []reflect.Type
	if p.Return != "void" {
		typ, ok := cTypes[p.Return]
		if !ok {
			return nil, errors.Errorf("%s: unsupported return type %q", p.Name, p.Return)
		}
		out = append(out, typ)
	}
	return reflect.FuncOf(in, out, false), nil
}

// ParsePrototypes returns the function declarations found in a C header.
// Definitions, variables and typedefs are ignored.
func ParsePrototypes(ctx context.Context, src []byte) ([]Prototype, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse interface")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, errors.New("interface file contains syntax errors")
	}

	var protos []Prototype
	if err := collectPrototypes(root, src, &protos); err != nil {
		return nil, err
	}
	return protos, nil
}

func collectPrototypes(parent *sitter.Node, src []byte, protos *[]Prototype) error {
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		node := parent.NamedChild(i)
		switch node.Type() {
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif":
			if err := collectPrototypes(node, src, protos); err != nil {
				return err
			}
			continue
		}
		if node.Type() != "declaration" {
			continue
		}
		proto, ok, err := declarationPrototype(node, src)
		if err != nil {
			return err
		}
		if ok {
			*protos = append(*protos, proto)
		}
	}
	return nil
}

func declarationPrototype(node *sitter.Node, src []byte) (Prototype, bool, error) {
	typeNode := node.ChildByFieldName("type")
	declarator := node.ChildByFieldName("declarator")
	if typeNode == nil || declarator == nil {
		return Prototype{}, false, nil
	}
	if declarator.Type() == "pointer_declarator" {
		return Prototype{}, false, errors.Errorf("unsupported pointer declaration %q", declarator.Content(src))
	}
	if declarator.Type() != "function_declarator" {
		return Prototype{}, false, nil
	}
	proto := Prototype{
		Name:   declarator.ChildByFieldName("declarator").Content(src),
		Return: normalizeType(typeNode.Content(src)),
	}
	params := declarator.ChildByFieldName("parameters")
	for j := 0; j < int(params.NamedChildCount()); j++ {
		param := params.NamedChild(j)
		if param.Type() != "parameter_declaration" {
			return proto, false, errors.Errorf("%s: unsupported parameter %q", proto.Name, param.Content(src))
		}
		d := param.ChildByFieldName("declarator")
		if d != nil && d.Type() != "identifier" {
			return proto, false, errors.Errorf("%s: unsupported parameter %q", proto.Name, param.Content(src))
		}
		typ := normalizeType(param.ChildByFieldName("type").Content(src))
		if typ == "void" && d == nil {
			continue
		}
		proto.Params = append(proto.Params, typ)
	}
	return proto, true, nil
}

func normalizeType(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
