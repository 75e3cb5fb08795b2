package expression

import (
	"math"
	"strings"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

func init() {
	register(&operator{name: "$literal", min: 1, max: 1, parse: func(_ string, arg document.Value) ([]Expr, error) {
		return []Expr{&Literal{Value: arg}}, nil
	}, eval: func(c *evalContext, args []Expr) (document.Value, error) {
		return args[0].eval(c)
	}})
	register(&operator{name: "$type", min: 1, max: 1, eval: strict(func(_ string, v []document.Value) (document.Value, error) {
		return document.String(v[0].Kind().String()), nil
	}, "$type")})

	register(&operator{name: "$size", min: 1, max: 1, eval: strict(evalSize, "$size")})
	register(&operator{name: "$arrayElemAt", min: 2, max: 2, eval: strict(evalArrayElemAt, "$arrayElemAt")})
	register(&operator{name: "$concatArrays", min: 0, max: -1, eval: strict(evalConcatArrays, "$concatArrays")})
	register(&operator{name: "$first", min: 1, max: 1, eval: strict(evalArrayEnd, "$first")})
	register(&operator{name: "$last", min: 1, max: 1, eval: strict(evalArrayEnd, "$last")})
	register(&operator{name: "$map", min: 3, max: 3, parse: parseMap, eval: evalMap})
	register(&operator{name: "$filter", min: 3, max: 3, parse: parseFilter, eval: evalFilter})

	register(&operator{name: "$concat", min: 0, max: -1, eval: strict(evalConcat, "$concat")})
	register(&operator{name: "$toString", min: 1, max: 1, eval: strict(evalToString, "$toString")})
	register(&operator{name: "$mergeObjects", min: 0, max: -1, eval: strict(evalMergeObjects, "$mergeObjects")})

	register(&operator{name: "$add", min: 0, max: -1, eval: strict(arith(0, func(a, b float64) float64 { return a + b }), "$add")})
	register(&operator{name: "$multiply", min: 0, max: -1, eval: strict(arith(1, func(a, b float64) float64 { return a * b }), "$multiply")})
	register(&operator{name: "$subtract", min: 2, max: 2, eval: strict(evalSubtract, "$subtract")})
	register(&operator{name: "$divide", min: 2, max: 2, eval: strict(evalDivide, "$divide")})
}

func evalSize(name string, v []document.Value) (document.Value, error) {
	if !v[0].IsArray() {
		return document.Missing(), typeMismatch(name, "array", v[0])
	}
	return document.Int(int64(len(v[0].ArrayValue()))), nil
}

// Negative indexes count from the end; out of range yields Missing.
func evalArrayElemAt(name string, v []document.Value) (document.Value, error) {
	if v[0].IsNullish() || v[1].IsNullish() {
		return document.Null(), nil
	}
	if !v[0].IsArray() {
		return document.Missing(), typeMismatch(name, "array", v[0])
	}
	idx, ok := v[1].IntValue()
	if !ok {
		return document.Missing(), typeMismatch(name, "integer index", v[1])
	}
	arr := v[0].ArrayValue()
	if idx < 0 {
		idx += int64(len(arr))
	}
	if idx < 0 || idx >= int64(len(arr)) {
		return document.Missing(), nil
	}
	return arr[idx], nil
}

func evalConcatArrays(name string, v []document.Value) (document.Value, error) {
	var out []document.Value
	for _, a := range v {
		if a.IsNullish() {
			return document.Null(), nil
		}
		if !a.IsArray() {
			return document.Missing(), typeMismatch(name, "array", a)
		}
		out = append(out, a.ArrayValue()...)
	}
	return document.Array(out...), nil
}

// evalArrayEnd implements the expression forms of $first and $last.
func evalArrayEnd(name string, v []document.Value) (document.Value, error) {
	a := v[0]
	if a.IsNullish() {
		return a, nil
	}
	if !a.IsArray() {
		return document.Missing(), typeMismatch(name, "array", a)
	}
	arr := a.ArrayValue()
	if len(arr) == 0 {
		return document.Missing(), nil
	}
	if name == "$first" {
		return arr[0], nil
	}
	return arr[len(arr)-1], nil
}

// iterator arguments of $map and $filter: input, variable name, body.
func parseIterating(name string, arg document.Value, body string) ([]Expr, error) {
	args, err := namedArgs(name, arg, []string{"input", body}, "as")
	if err != nil {
		return nil, err
	}
	as := "this"
	if lit, ok := args[2].(*Literal); ok && !lit.Value.IsMissing() {
		if lit.Value.Kind() != document.KindString {
			return nil, errors.InvalidExpression(name, "'as' must be a string")
		}
		as = lit.Value.StringValue()
	} else if !ok {
		return nil, errors.InvalidExpression(name, "'as' must be a string")
	}
	if err := ValidateVariableName(as); err != nil {
		return nil, err
	}
	return []Expr{args[0], &Literal{Value: document.String(as)}, args[1]}, nil
}

func parseMap(name string, arg document.Value) ([]Expr, error) {
	return parseIterating(name, arg, "in")
}

func parseFilter(name string, arg document.Value) ([]Expr, error) {
	return parseIterating(name, arg, "cond")
}

func iterate(c *evalContext, name string, args []Expr, fn func(el, out document.Value) error) (bool, error) {
	input, err := args[0].eval(c)
	if err != nil {
		return false, err
	}
	if input.IsNullish() {
		return false, nil
	}
	if !input.IsArray() {
		return false, typeMismatch(name, "array", input)
	}
	as := args[1].(*Literal).Value.StringValue()
	for _, el := range input.ArrayValue() {
		out, err := args[2].eval(&evalContext{root: c.root, env: c.env.With(as, el)})
		if err != nil {
			return false, err
		}
		if err := fn(el, out); err != nil {
			return false, err
		}
	}
	return true, nil
}

func evalMap(c *evalContext, args []Expr) (document.Value, error) {
	out := []document.Value{}
	ok, err := iterate(c, "$map", args, func(_, v document.Value) error {
		out = append(out, v.OrNull())
		return nil
	})
	if err != nil || !ok {
		return document.Null(), err
	}
	return document.Array(out...), nil
}

func evalFilter(c *evalContext, args []Expr) (document.Value, error) {
	out := []document.Value{}
	ok, err := iterate(c, "$filter", args, func(el, v document.Value) error {
		if v.Truthy() {
			out = append(out, el)
		}
		return nil
	})
	if err != nil || !ok {
		return document.Null(), err
	}
	return document.Array(out...), nil
}

func evalConcat(name string, v []document.Value) (document.Value, error) {
	var sb strings.Builder
	for _, s := range v {
		if s.IsNullish() {
			return document.Null(), nil
		}
		if s.Kind() != document.KindString {
			return document.Missing(), typeMismatch(name, "string", s)
		}
		sb.WriteString(s.StringValue())
	}
	return document.String(sb.String()), nil
}

func evalToString(name string, v []document.Value) (document.Value, error) {
	switch a := v[0]; a.Kind() {
	case document.KindMissing, document.KindNull:
		return document.Null(), nil
	case document.KindString:
		return a, nil
	case document.KindNumber, document.KindBool:
		return document.String(a.String()), nil
	default:
		return document.Missing(), typeMismatch(name, "scalar", a)
	}
}

// Later documents override fields of earlier ones; nullish operands are skipped.
func evalMergeObjects(name string, v []document.Value) (document.Value, error) {
	out := document.New(0)
	for _, a := range v {
		if a.IsNullish() {
			continue
		}
		d := a.DocumentValue()
		if d == nil {
			return document.Missing(), typeMismatch(name, "object", a)
		}
		for _, f := range d.Fields() {
			out.Set(f.Name, f.Value)
		}
	}
	return document.DocumentValue(out), nil
}

func numbers(name string, v []document.Value) ([]float64, bool, error) {
	out := make([]float64, len(v))
	for i, a := range v {
		if a.IsNullish() {
			return nil, false, nil
		}
		if a.Kind() != document.KindNumber {
			return nil, false, typeMismatch(name, "number", a)
		}
		out[i] = a.NumberValue()
	}
	return out, true, nil
}

func arith(identity float64, fn func(a, b float64) float64) func(string, []document.Value) (document.Value, error) {
	return func(name string, v []document.Value) (document.Value, error) {
		ns, ok, err := numbers(name, v)
		if err != nil || !ok {
			return document.Null(), err
		}
		acc := identity
		for _, n := range ns {
			acc = fn(acc, n)
		}
		return document.Number(acc), nil
	}
}

func evalSubtract(name string, v []document.Value) (document.Value, error) {
	ns, ok, err := numbers(name, v)
	if err != nil || !ok {
		return document.Null(), err
	}
	return document.Number(ns[0] - ns[1]), nil
}

func evalDivide(name string, v []document.Value) (document.Value, error) {
	ns, ok, err := numbers(name, v)
	if err != nil || !ok {
		return document.Null(), err
	}
	if ns[1] == 0 {
		return document.Missing(), errors.InvalidExpression(name, "division by zero")
	}
	q := ns[0] / ns[1]
	if math.IsInf(q, 0) {
		return document.Missing(), errors.InvalidExpression(name, "result overflows")
	}
	return document.Number(q), nil
}
