package structify

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// structBranch represents either a leaf or a subTree.
type structBranch struct {
	// field specifies the struct field index.
	field int
	// leaf specifies the map key to parse the struct field from.
	leaf string
	// subTree specifies the struct field's inner tree.
	subTree []structBranch
}

// MapStructifier parses a map's string values into a new struct and returns a pointer to it.
type MapStructifier = func(map[string]string) (interface{}, error)

// MakeMapStructifier builds a function which parses a map's string values into a new struct of type t
// and returns a pointer to it. tag specifies which tag connects struct fields to map keys.
// MakeMapStructifier panics if it detects an unsupported type (suitable for usage in init() or global vars).
func MakeMapStructifier(t reflect.Type, tag string) MapStructifier {
	tree := buildStructTree(t, tag)

	return func(kv map[string]string) (interface{}, error) {
		vPtr := reflect.New(t)

		vPtrElem := vPtr.Elem()
		return vPtr.Interface(), structifyMapByTree(kv, tree, vPtrElem, vPtrElem, new([]int))
	}
}

// buildStructTree assembles a tree which represents the struct t based on tag.
func buildStructTree(t reflect.Type, tag string) []structBranch {
	var tree []structBranch
	numFields := t.NumField()

	for i := 0; i < numFields; i++ {
		if field := t.Field(i); field.PkgPath == "" {
			switch tagValue := field.Tag.Get(tag); tagValue {
			case "", "-":
			case ",inline":
				if subTree := buildStructTree(field.Type, tag); subTree != nil {
					tree = append(tree, structBranch{i, "", subTree})
				}
			default:
				// If parseString doesn't support *T, it'll panic.
				_ = parseString("", reflect.New(field.Type).Interface())

				tree = append(tree, structBranch{i, tagValue, nil})
			}
		}
	}

	return tree
}

// structifyMapByTree parses src's string values into the struct dest according to tree's specification.
func structifyMapByTree(src map[string]string, tree []structBranch, dest, root reflect.Value, stack *[]int) error {
	*stack = append(*stack, 0)
	defer func() {
		*stack = (*stack)[:len(*stack)-1]
	}()

	for _, branch := range tree {
		(*stack)[len(*stack)-1] = branch.field

		if branch.subTree == nil {
			if vs, ok := src[branch.leaf]; ok {
				if err := parseString(vs, dest.Field(branch.field).Addr().Interface()); err != nil {
					rt := root.Type()
					typ := rt
					var path []string

					for _, i := range *stack {
						f := typ.Field(i)
						path = append(path, f.Name)
						typ = f.Type
					}

					return errors.Wrap(err, fmt.Sprintf(
						"can't parse %s into the %s %s#%s: %s", branch.leaf,
						typ.Name(), rt.Name(), strings.Join(path, "."), vs,
					))
				}
			}
		} else if err := structifyMapByTree(src, branch.subTree, dest.Field(branch.field), root, stack); err != nil {
			return err
		}
	}

	return nil
}

// parseString parses src into *dest.
func parseString(src string, dest interface{}) error {
	switch ptr := dest.(type) {
	case encoding.TextUnmarshaler:
		return ptr.UnmarshalText([]byte(src))
	case *string:
		*ptr = src
		return nil
	case **string:
		*ptr = &src
		return nil
	case *bool:
		v, err := strconv.ParseBool(src)
		if err == nil {
			*ptr = v
		}

		return err
	case *int:
		v, err := strconv.ParseInt(src, 10, 64)
		if err == nil {
			*ptr = int(v)
		}

		return err
	case *int8:
		v, err := strconv.ParseInt(src, 10, 8)
		if err == nil {
			*ptr = int8(v)
		}

		return err
	case *int16:
		v, err := strconv.ParseInt(src, 10, 16)
		if err == nil {
			*ptr = int16(v)
		}

		return err
	case *int32:
		v, err := strconv.ParseInt(src, 10, 32)
		if err == nil {
			*ptr = int32(v)
		}

		return err
	case *int64:
		v, err := strconv.ParseInt(src, 10, 64)
		if err == nil {
			*ptr = v
		}

		return err
	case *uint:
		v, err := strconv.ParseUint(src, 10, 64)
		if err == nil {
			*ptr = uint(v)
		}

		return err
	case *uint8:
		v, err := strconv.ParseUint(src, 10, 8)
		if err == nil {
			*ptr = uint8(v)
		}

		return err
	case *uint16:
		v, err := strconv.ParseUint(src, 10, 16)
		if err == nil {
			*ptr = uint16(v)
		}

		return err
	case *uint32:
		v, err := strconv.ParseUint(src, 10, 32)
		if err == nil {
			*ptr = uint32(v)
		}

		return err
	case *uint64:
		v, err := strconv.ParseUint(src, 10, 64)
		if err == nil {
			*ptr = v
		}

		return err
	case *float32:
		v, err := strconv.ParseFloat(src, 32)
		if err == nil {
			*ptr = float32(v)
		}

		return err
	case *float64:
		v, err := strconv.ParseFloat(src, 64)
		if err == nil {
			*ptr = v
		}

		return err
	default:
		panic(fmt.Sprintf("unsupported type: %T", dest))
	}
}
