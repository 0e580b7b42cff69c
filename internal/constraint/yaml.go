package constraint

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Payload flag sets and enums read either as numbers or by name, so rig
// documents can say `flag: [loc_x, loc_y]` or `mix_mode: replace`.

func marshalFlags[T ~uint32](f T, names []string) (any, error) {
	out := []string{}
	for i, n := range names {
		if n != "" && f&(1<<i) != 0 {
			out = append(out, n)
		}
	}
	return out, nil
}

func flagBit(name string, names []string) (uint32, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n != "" && n == name {
			return 1 << i, true
		}
	}
	return 0, false
}

func unmarshalFlags[T ~uint32](n *yaml.Node, f *T, names []string) error {
	var list []string
	switch n.Kind {
	case yaml.ScalarNode:
		var v uint32
		if err := n.Decode(&v); err == nil {
			*f = T(v)
			return nil
		}
		if n.Value != "" {
			list = []string{n.Value}
		}
	case yaml.SequenceNode:
		if err := n.Decode(&list); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: flags must be a number, a name or a list of names", n.Line)
	}

	var v uint32
	for _, name := range list {
		bit, ok := flagBit(name, names)
		if !ok {
			return fmt.Errorf("line %d: unknown flag %q", n.Line, name)
		}
		v |= bit
	}
	*f = T(v)
	return nil
}

func marshalEnum[T ~int](v T, names []string) (any, error) {
	if i := int(v); i >= 0 && i < len(names) && names[i] != "" {
		return names[i], nil
	}
	return int(v), nil
}

func unmarshalEnum[T ~int](n *yaml.Node, v *T, names []string) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	var i int
	if err := n.Decode(&i); err == nil {
		*v = T(i)
		return nil
	}
	s := strings.ToLower(strings.TrimSpace(n.Value))
	for i, name := range names {
		if name != "" && name == s {
			*v = T(i)
			return nil
		}
	}
	return fmt.Errorf("line %d: unknown value %q", n.Line, n.Value)
}
