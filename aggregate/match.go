package aggregate

import (
	"context"
	"strings"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
)

type predicate func(env *runEnv, d *document.Document) (bool, error)

type matchStage struct {
	pred predicate
}

func parseMatch(arg document.Value, _ int) (stage, error) {
	d, err := stageObject("$match", arg)
	if err != nil {
		return nil, err
	}
	pred, err := compileQuery(d)
	if err != nil {
		return nil, err
	}
	return &matchStage{pred: pred}, nil
}

// Matching documents are emitted unchanged.
func (s *matchStage) apply(env *runEnv, in docStream) docStream {
	return env.perDocument(in, func(_ context.Context, d *document.Document) ([]*document.Document, error) {
		ok, err := s.pred(env, d)
		if err != nil || !ok {
			return nil, err
		}
		return one(d), nil
	})
}

// compileQuery compiles a query object. All of its clauses must hold.
func compileQuery(q *document.Document) (predicate, error) {
	var clauses []predicate
	for _, f := range q.Fields() {
		var p predicate
		var err error
		switch {
		case f.Name == "$expr":
			p, err = compileExprClause(f.Value)
		case f.Name == "$and" || f.Name == "$or" || f.Name == "$nor":
			p, err = compileLogical(f.Name, f.Value)
		case strings.HasPrefix(f.Name, "$"):
			err = errors.InvalidExpression(f.Name, "unknown top-level query operator")
		default:
			p, err = compileFieldClause(f.Name, f.Value)
		}
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, p)
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return func(env *runEnv, d *document.Document) (bool, error) {
		for _, c := range clauses {
			ok, err := c(env, d)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}, nil
}

// $expr must evaluate to a boolean; anything else is a type error rather
// than a silent false.
func compileExprClause(v document.Value) (predicate, error) {
	e, err := expression.Parse(v)
	if err != nil {
		return nil, err
	}
	return func(env *runEnv, d *document.Document) (bool, error) {
		r, err := env.eval(e, d)
		if err != nil {
			return false, err
		}
		if r.Kind() != document.KindBool {
			return false, errors.TypeMismatch("$expr", "bool", r.Kind().String())
		}
		return r.BoolValue(), nil
	}, nil
}

func compileLogical(op string, v document.Value) (predicate, error) {
	if !v.IsArray() || len(v.ArrayValue()) == 0 {
		return nil, errors.InvalidExpression(op, "requires a non-empty array of query objects")
	}
	var subs []predicate
	for _, el := range v.ArrayValue() {
		q := el.DocumentValue()
		if q == nil {
			return nil, errors.InvalidExpression(op, "array elements must be query objects")
		}
		p, err := compileQuery(q)
		if err != nil {
			return nil, err
		}
		subs = append(subs, p)
	}
	return func(env *runEnv, d *document.Document) (bool, error) {
		for _, p := range subs {
			ok, err := p(env, d)
			if err != nil {
				return false, err
			}
			switch {
			case op == "$and" && !ok:
				return false, nil
			case op == "$or" && ok:
				return true, nil
			case op == "$nor" && ok:
				return false, nil
			}
		}
		return op != "$or", nil
	}, nil
}

type condition func(val document.Value) bool

func compileFieldClause(path string, v document.Value) (predicate, error) {
	var cond condition
	if d := v.DocumentValue(); d != nil && d.Len() > 0 && strings.HasPrefix(d.Fields()[0].Name, "$") {
		var conds []condition
		for _, f := range d.Fields() {
			c, err := compileOperatorCondition(f.Name, f.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
		}
		cond = func(val document.Value) bool {
			for _, c := range conds {
				if !c(val) {
					return false
				}
			}
			return true
		}
	} else {
		cond = func(val document.Value) bool { return queryEquals(val, v) }
	}
	return func(_ *runEnv, d *document.Document) (bool, error) {
		return cond(d.Lookup(path)), nil
	}, nil
}

func compileOperatorCondition(op string, arg document.Value) (condition, error) {
	switch op {
	case "$eq":
		return func(val document.Value) bool { return queryEquals(val, arg) }, nil
	case "$ne":
		return func(val document.Value) bool { return !queryEquals(val, arg) }, nil
	case "$gt", "$gte", "$lt", "$lte":
		return func(val document.Value) bool { return queryCompare(op, val, arg) }, nil
	case "$in", "$nin":
		if !arg.IsArray() {
			return nil, errors.InvalidExpression(op, "requires an array")
		}
		set := arg.ArrayValue()
		return func(val document.Value) bool {
			for _, el := range set {
				if queryEquals(val, el) {
					return op == "$in"
				}
			}
			return op == "$nin"
		}, nil
	case "$exists":
		want := arg.Truthy()
		return func(val document.Value) bool { return !val.IsMissing() == want }, nil
	default:
		if strings.HasPrefix(op, "$") {
			return nil, errors.InvalidExpression(op, "unknown query operator")
		}
		return nil, errors.InvalidExpression("$match", "operators cannot be mixed with field names in '"+op+"'")
	}
}

// candidates are the values a query compares against: the field itself and,
// for arrays, each element.
func candidates(val document.Value) []document.Value {
	if !val.IsArray() {
		return []document.Value{val}
	}
	elems := val.ArrayValue()
	out := make([]document.Value, 0, len(elems)+1)
	out = append(out, elems...)
	return append(out, val)
}

// queryEquals implements query equality: a null operand also matches a
// missing field, and an array field matches when any element matches.
// $lookup equality differs on null; see the package documentation.
func queryEquals(val, lit document.Value) bool {
	if lit.IsNull() && val.IsMissing() {
		return true
	}
	for _, c := range candidates(val) {
		if document.Equal(c, lit) {
			return true
		}
	}
	return false
}

// Ordering comparisons only consider values of the operand's own kind.
func queryCompare(op string, val, lit document.Value) bool {
	if lit.IsNull() && (op == "$gte" || op == "$lte") {
		return queryEquals(val, lit)
	}
	for _, c := range candidates(val) {
		if c.Kind() != lit.Kind() {
			continue
		}
		cmp := document.Compare(c, lit)
		switch {
		case op == "$gt" && cmp > 0,
			op == "$gte" && cmp >= 0,
			op == "$lt" && cmp < 0,
			op == "$lte" && cmp <= 0:
			return true
		}
	}
	return false
}
