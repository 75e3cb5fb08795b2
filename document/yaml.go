package document

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// FromYAMLNode converts a decoded YAML node tree into a Value. Mapping order
// is preserved; scalars are typed by their resolved tag.
func FromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(n.Alias)
	case yaml.SequenceNode:
		out := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := FromYAMLNode(c)
			if err != nil {
				return Missing(), err
			}
			out = append(out, v)
		}
		return Array(out...), nil
	case yaml.MappingNode:
		d := New(len(n.Content) / 2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := FromYAMLNode(n.Content[i+1])
			if err != nil {
				return Missing(), err
			}
			d.Set(n.Content[i].Value, v)
		}
		return DocumentValue(d), nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}
	return Missing(), fmt.Errorf("document: unsupported yaml node kind %d at line %d", n.Kind, n.Line)
}

func scalarFromYAML(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(n.Value))
		if err != nil {
			return Missing(), fmt.Errorf("document: line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		if i, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return Missing(), fmt.Errorf("document: line %d: %w", n.Line, err)
		}
		return Number(f), nil
	case "!!float":
		switch strings.ToLower(n.Value) {
		case ".inf", "+.inf":
			return Number(math.Inf(1)), nil
		case "-.inf":
			return Number(math.Inf(-1)), nil
		case ".nan":
			return Number(math.NaN()), nil
		}
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return Missing(), fmt.Errorf("document: line %d: %w", n.Line, err)
		}
		return Number(f), nil
	default:
		return String(n.Value), nil
	}
}
