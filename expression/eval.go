package expression

import (
	"strconv"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

type evalContext struct {
	root *document.Document
	env  *Bindings
}

// Evaluate evaluates e against doc with the given variable environment.
// doc may be nil for expressions that reference no fields.
func Evaluate(e Expr, doc *document.Document, env *Bindings) (document.Value, error) {
	return e.eval(&evalContext{root: doc, env: env})
}

func (f *FieldRef) eval(c *evalContext) (document.Value, error) {
	if c.root == nil {
		return document.Missing(), nil
	}
	return document.Resolve(document.DocumentValue(c.root), f.segments), nil
}

func (l *Literal) eval(*evalContext) (document.Value, error) {
	return l.Value, nil
}

func (v *Variable) eval(c *evalContext) (document.Value, error) {
	var base document.Value
	switch v.Name {
	case "ROOT", "CURRENT":
		if c.root == nil {
			return document.Missing(), nil
		}
		base = document.DocumentValue(c.root)
	case "REMOVE":
		return document.Missing(), nil
	default:
		val, ok := c.env.Lookup(v.Name)
		if !ok {
			return document.Missing(), errors.UndefinedVariable(v.Name)
		}
		base = val
	}
	return document.Resolve(base, v.segments), nil
}

func (o *Operator) eval(c *evalContext) (document.Value, error) {
	return o.op.eval(c, o.Args)
}

// Missing elements of an array literal become Null.
func (a *ArrayExpr) eval(c *evalContext) (document.Value, error) {
	out := make([]document.Value, len(a.Elems))
	for i, e := range a.Elems {
		v, err := e.eval(c)
		if err != nil {
			return document.Missing(), err
		}
		out[i] = v.OrNull()
	}
	return document.Array(out...), nil
}

// Fields evaluating to Missing are omitted from the result.
func (o *ObjectExpr) eval(c *evalContext) (document.Value, error) {
	d := document.New(len(o.Fields))
	for _, f := range o.Fields {
		v, err := f.Expr.eval(c)
		if err != nil {
			return document.Missing(), err
		}
		d.Set(f.Name, v)
	}
	return document.DocumentValue(d), nil
}

func evalAll(c *evalContext, args []Expr) ([]document.Value, error) {
	out := make([]document.Value, len(args))
	for i, a := range args {
		v, err := a.eval(c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
