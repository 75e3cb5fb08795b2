package expression

import (
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

func init() {
	for name, pred := range map[string]func(int) bool{
		"$gt":  func(c int) bool { return c > 0 },
		"$gte": func(c int) bool { return c >= 0 },
		"$lt":  func(c int) bool { return c < 0 },
		"$lte": func(c int) bool { return c <= 0 },
	} {
		pred := pred
		register(&operator{name: name, min: 2, max: 2, eval: strict(func(_ string, v []document.Value) (document.Value, error) {
			return document.Bool(pred(document.Compare(v[0], v[1]))), nil
		}, name)})
	}
	register(&operator{name: "$eq", min: 2, max: 2, eval: strict(func(_ string, v []document.Value) (document.Value, error) {
		return document.Bool(document.Equal(v[0], v[1])), nil
	}, "$eq")})
	register(&operator{name: "$ne", min: 2, max: 2, eval: strict(func(_ string, v []document.Value) (document.Value, error) {
		return document.Bool(!document.Equal(v[0], v[1])), nil
	}, "$ne")})
	register(&operator{name: "$cmp", min: 2, max: 2, eval: strict(func(_ string, v []document.Value) (document.Value, error) {
		return document.Int(int64(document.Compare(v[0], v[1]))), nil
	}, "$cmp")})

	register(&operator{name: "$and", min: 0, max: -1, eval: evalAnd})
	register(&operator{name: "$or", min: 0, max: -1, eval: evalOr})
	register(&operator{name: "$not", min: 1, max: 1, eval: strict(func(_ string, v []document.Value) (document.Value, error) {
		return document.Bool(!v[0].Truthy()), nil
	}, "$not")})

	register(&operator{name: "$cond", min: 3, max: 3, parse: parseCond, eval: evalCond})
	register(&operator{name: "$ifNull", min: 2, max: -1, eval: evalIfNull})
	register(&operator{name: "$in", min: 2, max: 2, eval: strict(evalIn, "$in")})
	register(&operator{name: "$isArray", min: 1, max: 1, eval: strict(func(_ string, v []document.Value) (document.Value, error) {
		return document.Bool(v[0].IsArray()), nil
	}, "$isArray")})
	register(&operator{name: "$let", min: 2, max: 2, parse: parseLet, eval: evalLet})
}

// $and and $or short-circuit.
func evalAnd(c *evalContext, args []Expr) (document.Value, error) {
	for _, a := range args {
		v, err := a.eval(c)
		if err != nil {
			return document.Missing(), err
		}
		if !v.Truthy() {
			return document.Bool(false), nil
		}
	}
	return document.Bool(true), nil
}

func evalOr(c *evalContext, args []Expr) (document.Value, error) {
	for _, a := range args {
		v, err := a.eval(c)
		if err != nil {
			return document.Missing(), err
		}
		if v.Truthy() {
			return document.Bool(true), nil
		}
	}
	return document.Bool(false), nil
}

func parseCond(name string, arg document.Value) ([]Expr, error) {
	if arg.IsDocument() {
		return namedArgs(name, arg, []string{"if", "then", "else"})
	}
	if !arg.IsArray() {
		return nil, errors.InvalidExpression(name, "expects an object {if, then, else} or an array of three expressions")
	}
	return parseOperands(arg)
}

// Only the selected branch is evaluated.
func evalCond(c *evalContext, args []Expr) (document.Value, error) {
	cond, err := args[0].eval(c)
	if err != nil {
		return document.Missing(), err
	}
	if cond.Truthy() {
		return args[1].eval(c)
	}
	return args[2].eval(c)
}

// $ifNull returns the first operand that is neither Null nor Missing; the
// last operand is returned as is.
func evalIfNull(c *evalContext, args []Expr) (document.Value, error) {
	for i, a := range args {
		v, err := a.eval(c)
		if err != nil {
			return document.Missing(), err
		}
		if !v.IsNullish() || i == len(args)-1 {
			return v, nil
		}
	}
	return document.Null(), nil
}

func evalIn(name string, v []document.Value) (document.Value, error) {
	candidates, err := InOperand(name, v[1])
	if err != nil {
		return document.Missing(), err
	}
	for _, el := range candidates {
		if document.Equal(v[0], el) {
			return document.Bool(true), nil
		}
	}
	return document.Bool(false), nil
}

// InOperand normalizes the right-hand side of $in. Arrays are used as is,
// Missing is an empty array and other scalars are singletons. A document
// cannot be used.
func InOperand(op string, v document.Value) ([]document.Value, error) {
	switch v.Kind() {
	case document.KindArray:
		return v.ArrayValue(), nil
	case document.KindMissing:
		return nil, nil
	case document.KindDocument:
		return nil, typeMismatch(op, "array or scalar", v)
	default:
		return []document.Value{v}, nil
	}
}

// letExpr carries the variable definitions of a $let.
type letExpr struct {
	vars []NamedExpr
}

func (l *letExpr) String() string {
	return (&ObjectExpr{Fields: l.vars}).String()
}

func (l *letExpr) eval(*evalContext) (document.Value, error) {
	return document.Missing(), errors.InvalidExpression("$let", "vars cannot be evaluated directly")
}

func parseLet(name string, arg document.Value) ([]Expr, error) {
	d := arg.DocumentValue()
	if d == nil {
		return nil, errors.InvalidExpression(name, "expects an object {vars, in}")
	}
	vars := d.Get("vars").DocumentValue()
	if vars == nil || !d.Has("in") || d.Len() != 2 {
		return nil, errors.InvalidExpression(name, "expects exactly 'vars' (an object) and 'in'")
	}
	le := &letExpr{}
	for _, f := range vars.Fields() {
		if err := ValidateVariableName(f.Name); err != nil {
			return nil, err
		}
		e, err := Parse(f.Value)
		if err != nil {
			return nil, err
		}
		le.vars = append(le.vars, NamedExpr{Name: f.Name, Expr: e})
	}
	in, err := Parse(d.Get("in"))
	if err != nil {
		return nil, err
	}
	return []Expr{le, in}, nil
}

// Variables are evaluated in the outer scope and then bound together.
func evalLet(c *evalContext, args []Expr) (document.Value, error) {
	le := args[0].(*letExpr)
	env := c.env
	for _, v := range le.vars {
		val, err := v.Expr.eval(c)
		if err != nil {
			return document.Missing(), err
		}
		env = env.With(v.Name, val)
	}
	return args[1].eval(&evalContext{root: c.root, env: env})
}

// ValidateVariableName rejects names that cannot be referenced as $$name.
func ValidateVariableName(name string) error {
	if name == "" {
		return errors.InvalidExpression("", "empty variable name")
	}
	switch name {
	case "ROOT", "CURRENT", "REMOVE":
		return errors.InvalidExpression("", "cannot rebind system variable "+name)
	}
	c := name[0]
	if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
		return errors.InvalidExpression("", "variable name must start with a letter or underscore: "+name)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' || name[i] == '$' {
			return errors.InvalidExpression("", "invalid character in variable name: "+name)
		}
	}
	return nil
}
