package expression

import (
	"strings"

	"github.com/kbukum/viewkit/document"
)

// Expr is a parsed expression.
type Expr interface {
	String() string
	eval(c *evalContext) (document.Value, error)
}

// FieldRef references a dotted path of the current document.
type FieldRef struct {
	Path     string
	segments []string
}

// NewFieldRef builds a field reference from a dotted path without the "$".
func NewFieldRef(path string) *FieldRef {
	return &FieldRef{Path: path, segments: document.SplitPath(path)}
}

func (f *FieldRef) String() string { return "$" + f.Path }

// Literal is a constant value.
type Literal struct {
	Value document.Value
}

func (l *Literal) String() string { return l.Value.String() }

// Variable references a binding, optionally followed by a dotted path.
type Variable struct {
	Name     string
	Path     string
	segments []string
}

func (v *Variable) String() string {
	if v.Path == "" {
		return "$$" + v.Name
	}
	return "$$" + v.Name + "." + v.Path
}

// Operator applies a named operator to its operands.
type Operator struct {
	Name string
	Args []Expr
	op   *operator
}

func (o *Operator) String() string {
	parts := make([]string, len(o.Args))
	for i, a := range o.Args {
		parts[i] = a.String()
	}
	return "{" + o.Name + ": [" + strings.Join(parts, ", ") + "]}"
}

// ArrayExpr builds an array from element expressions.
type ArrayExpr struct {
	Elems []Expr
}

func (a *ArrayExpr) String() string {
	parts := make([]string, len(a.Elems))
	for i, e := range a.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ObjectExpr builds a document from named field expressions.
type ObjectExpr struct {
	Fields []NamedExpr
}

// NamedExpr pairs an output field name with its expression.
type NamedExpr struct {
	Name string
	Expr Expr
}

func (o *ObjectExpr) String() string {
	parts := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		parts[i] = f.Name + ": " + f.Expr.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// IsConstant reports whether e evaluates to the same value for every document.
func IsConstant(e Expr) bool {
	switch x := e.(type) {
	case *Literal:
		return true
	case *ArrayExpr:
		for _, el := range x.Elems {
			if !IsConstant(el) {
				return false
			}
		}
		return true
	case *ObjectExpr:
		for _, f := range x.Fields {
			if !IsConstant(f.Expr) {
				return false
			}
		}
		return true
	}
	return false
}
