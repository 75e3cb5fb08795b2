package expression

import (
	"strings"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

// Parse compiles the declarative form of an expression.
func Parse(v document.Value) (Expr, error) {
	switch v.Kind() {
	case document.KindString:
		return parseString(v.StringValue())
	case document.KindArray:
		elems := v.ArrayValue()
		out := make([]Expr, len(elems))
		for i, el := range elems {
			e, err := Parse(el)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return &ArrayExpr{Elems: out}, nil
	case document.KindDocument:
		return parseDocument(v.DocumentValue())
	default:
		return &Literal{Value: v}, nil
	}
}

// MustParse is like Parse but panics on error.
func MustParse(text string) Expr {
	e, err := Parse(document.MustParse(text))
	if err != nil {
		panic(err)
	}
	return e
}

// ParsePath parses a "$field.path" string, as used by $unwind and
// $lookup localField, into a field reference.
func ParsePath(op, s string) (*FieldRef, error) {
	if !strings.HasPrefix(s, "$") || strings.HasPrefix(s, "$$") || len(s) < 2 {
		return nil, errors.InvalidExpression(op, "path must be a string starting with a single '$'")
	}
	return NewFieldRef(s[1:]), nil
}

func parseString(s string) (Expr, error) {
	switch {
	case strings.HasPrefix(s, "$$"):
		rest := s[2:]
		if rest == "" {
			return nil, errors.InvalidExpression("", "empty variable name")
		}
		name, path, _ := strings.Cut(rest, ".")
		if name == "" {
			return nil, errors.InvalidExpression("", "empty variable name in "+s)
		}
		return &Variable{Name: name, Path: path, segments: document.SplitPath(path)}, nil
	case strings.HasPrefix(s, "$"):
		if len(s) == 1 {
			return nil, errors.InvalidExpression("", "'$' is not a valid field path")
		}
		return NewFieldRef(s[1:]), nil
	default:
		return &Literal{Value: document.String(s)}, nil
	}
}

func parseDocument(d *document.Document) (Expr, error) {
	fields := d.Fields()
	if len(fields) > 0 && strings.HasPrefix(fields[0].Name, "$") {
		if len(fields) != 1 {
			return nil, errors.InvalidExpression(fields[0].Name,
				"an operator expression must be the only field of its object")
		}
		return parseOperator(fields[0].Name, fields[0].Value)
	}
	out := &ObjectExpr{Fields: make([]NamedExpr, 0, len(fields))}
	for _, f := range fields {
		if strings.HasPrefix(f.Name, "$") {
			return nil, errors.InvalidExpression(f.Name, "operators cannot be mixed with field names")
		}
		e, err := Parse(f.Value)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, NamedExpr{Name: f.Name, Expr: e})
	}
	return out, nil
}

func parseOperator(name string, arg document.Value) (Expr, error) {
	op, ok := lookupOperator(name)
	if !ok {
		return nil, errors.InvalidExpression(name, "unknown operator")
	}
	var args []Expr
	var err error
	if op.parse != nil {
		args, err = op.parse(name, arg)
	} else {
		args, err = parseOperands(arg)
	}
	if err != nil {
		return nil, err
	}
	if len(args) < op.min || (op.max >= 0 && len(args) > op.max) {
		return nil, errors.InvalidExpression(name, arityMessage(op, len(args)))
	}
	return &Operator{Name: name, Args: args, op: op}, nil
}

// parseOperands treats an array argument as the operand list and anything
// else as a single operand.
func parseOperands(arg document.Value) ([]Expr, error) {
	if !arg.IsArray() {
		e, err := Parse(arg)
		if err != nil {
			return nil, err
		}
		return []Expr{e}, nil
	}
	elems := arg.ArrayValue()
	out := make([]Expr, len(elems))
	for i, el := range elems {
		e, err := Parse(el)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func arityMessage(op *operator, got int) string {
	switch {
	case op.max < 0:
		return "expects at least " + itoa(op.min) + " arguments, got " + itoa(got)
	case op.min == op.max:
		return "expects exactly " + itoa(op.min) + " arguments, got " + itoa(got)
	default:
		return "expects " + itoa(op.min) + " to " + itoa(op.max) + " arguments, got " + itoa(got)
	}
}
