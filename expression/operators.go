package expression

import (
	"sort"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

type operator struct {
	name string
	// min and max bound the operand count; max < 0 means unbounded.
	min, max int
	// parse overrides the default operand parsing for operators with
	// named arguments.
	parse func(name string, arg document.Value) ([]Expr, error)
	eval  func(c *evalContext, args []Expr) (document.Value, error)
}

var operators = make(map[string]*operator)

func register(op *operator) {
	if _, dup := operators[op.name]; dup {
		panic("expression: operator registered twice: " + op.name)
	}
	operators[op.name] = op
}

func lookupOperator(name string) (*operator, bool) {
	op, ok := operators[name]
	return op, ok
}

// Operators returns the names of all supported expression operators, sorted.
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// strict wraps an evaluator that needs all operands evaluated up front.
func strict(fn func(name string, vals []document.Value) (document.Value, error), name string) func(*evalContext, []Expr) (document.Value, error) {
	return func(c *evalContext, args []Expr) (document.Value, error) {
		vals, err := evalAll(c, args)
		if err != nil {
			return document.Missing(), err
		}
		return fn(name, vals)
	}
}

// namedArgs parses an object argument with a fixed set of named operands,
// returned in the order of names. Absent optional operands parse as Missing
// literals.
func namedArgs(op string, arg document.Value, required []string, optional ...string) ([]Expr, error) {
	d := arg.DocumentValue()
	if d == nil {
		return nil, errors.InvalidExpression(op, "expects an object argument")
	}
	known := make(map[string]bool, len(required)+len(optional))
	for _, n := range required {
		known[n] = true
	}
	for _, n := range optional {
		known[n] = true
	}
	for _, k := range d.Keys() {
		if !known[k] {
			return nil, errors.InvalidExpression(op, "unrecognized argument '"+k+"'")
		}
	}
	names := append(append([]string{}, required...), optional...)
	out := make([]Expr, len(names))
	for i, n := range names {
		v := d.Get(n)
		if v.IsMissing() {
			if i < len(required) {
				return nil, errors.InvalidExpression(op, "missing '"+n+"'")
			}
			out[i] = &Literal{Value: document.Missing()}
			continue
		}
		e, err := Parse(v)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func typeMismatch(op, expected string, got document.Value) error {
	return errors.TypeMismatch(op, expected, got.Kind().String())
}
