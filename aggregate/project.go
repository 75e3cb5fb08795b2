package aggregate

import (
	"context"
	"strings"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
)

type projectMode int

const (
	projectInclude projectMode = iota
	projectExclude
)

type projectField struct {
	path string
	// expr is nil for plain inclusion or exclusion.
	expr expression.Expr
}

// projectStage reshapes documents. In inclusion mode the output holds _id
// (unless excluded) followed by the listed fields in declaration order;
// in exclusion mode it is the input without the listed fields.
type projectStage struct {
	mode      projectMode
	fields    []projectField
	excludeID bool
	// id is set when _id is computed or renamed.
	id expression.Expr
}

func parseProject(arg document.Value, _ int) (stage, error) {
	const kind = "$project"
	d, err := stageObject(kind, arg)
	if err != nil {
		return nil, err
	}
	if d.Len() == 0 {
		return nil, errors.InvalidExpression(kind, "stage document must have at least one field")
	}
	s := &projectStage{}
	var includes, excludes int
	for _, f := range d.Fields() {
		if f.Name == "" || strings.HasPrefix(f.Name, "$") {
			return nil, errors.InvalidExpression(kind, "invalid field name '"+f.Name+"'")
		}
		switch f.Value.Kind() {
		case document.KindNumber, document.KindBool:
			include := f.Value.Truthy()
			if f.Name == "_id" {
				s.excludeID = !include
				continue
			}
			if include {
				includes++
			} else {
				excludes++
			}
			s.fields = append(s.fields, projectField{path: f.Name})
		default:
			e, err := expression.Parse(f.Value)
			if err != nil {
				return nil, err
			}
			if f.Name == "_id" {
				s.id = e
				continue
			}
			includes++
			s.fields = append(s.fields, projectField{path: f.Name, expr: e})
		}
	}
	switch {
	case includes > 0 && excludes > 0:
		return nil, errors.InvalidExpression(kind, "cannot mix inclusion and exclusion of fields other than _id")
	case excludes > 0 && s.id != nil:
		return nil, errors.InvalidExpression(kind, "cannot compute _id in an exclusion projection")
	case excludes > 0:
		s.mode = projectExclude
	case includes == 0 && s.id == nil:
		// only {_id: 0} or {_id: 1}
		if s.excludeID {
			s.mode = projectExclude
		}
	}
	return s, nil
}

func (s *projectStage) apply(env *runEnv, in docStream) docStream {
	return env.perDocument(in, func(_ context.Context, d *document.Document) ([]*document.Document, error) {
		out, err := s.project(env, d)
		if err != nil {
			return nil, err
		}
		return one(out), nil
	})
}

func (s *projectStage) project(env *runEnv, d *document.Document) (*document.Document, error) {
	if s.mode == projectExclude {
		out := d
		if s.excludeID {
			out = out.RemovePath("_id")
		}
		for _, f := range s.fields {
			out = out.RemovePath(f.path)
		}
		return out, nil
	}

	out := document.New(len(s.fields) + 1)
	switch {
	case s.id != nil:
		v, err := env.eval(s.id, d)
		if err != nil {
			return nil, err
		}
		out.Set("_id", v)
	case !s.excludeID:
		out.Set("_id", d.Get("_id"))
	}
	for _, f := range s.fields {
		var v document.Value
		switch {
		case f.expr != nil:
			var err error
			if v, err = env.eval(f.expr, d); err != nil {
				return nil, err
			}
		case strings.Contains(f.path, "."):
			// inclusion through arrays keeps the arrays
			if inc := d.Include(f.path); inc != nil {
				out = out.MergePaths(inc)
			}
			continue
		default:
			v = d.Get(f.path)
		}
		if v.IsMissing() {
			continue
		}
		out = setOutput(out, f.path, v)
	}
	return out, nil
}

// setOutput sets a possibly dotted field on a document under construction.
func setOutput(out *document.Document, path string, v document.Value) *document.Document {
	if !strings.Contains(path, ".") {
		out.Set(path, v)
		return out
	}
	return out.SetPath(path, v)
}

// addFieldsStage sets computed fields, keeping all existing ones. Every
// expression sees the input document; a Missing result removes the field.
type addFieldsStage struct {
	fields []expression.NamedExpr
}

func parseAddFields(arg document.Value, _ int) (stage, error) {
	const kind = "$addFields"
	d, err := stageObject(kind, arg)
	if err != nil {
		return nil, err
	}
	if d.Len() == 0 {
		return nil, errors.InvalidExpression(kind, "stage document must have at least one field")
	}
	s := &addFieldsStage{}
	for _, f := range d.Fields() {
		if f.Name == "" || strings.HasPrefix(f.Name, "$") {
			return nil, errors.InvalidExpression(kind, "invalid field name '"+f.Name+"'")
		}
		e, err := expression.Parse(f.Value)
		if err != nil {
			return nil, err
		}
		s.fields = append(s.fields, expression.NamedExpr{Name: f.Name, Expr: e})
	}
	return s, nil
}

func (s *addFieldsStage) apply(env *runEnv, in docStream) docStream {
	return env.perDocument(in, func(_ context.Context, d *document.Document) ([]*document.Document, error) {
		out := d
		for _, f := range s.fields {
			v, err := env.eval(f.Expr, d)
			if err != nil {
				return nil, err
			}
			out = out.SetPath(f.Name, v)
		}
		return one(out), nil
	})
}

// replaceRootStage replaces each document with the value of an expression,
// which must be a document.
type replaceRootStage struct {
	kind    string
	newRoot expression.Expr
}

func parseReplaceRoot(arg document.Value, _ int) (stage, error) {
	const kind = "$replaceRoot"
	d, err := stageObject(kind, arg)
	if err != nil {
		return nil, err
	}
	if err := checkKnownFields(kind, d, "newRoot"); err != nil {
		return nil, err
	}
	if !d.Has("newRoot") {
		return nil, errors.MissingRequiredField(kind, "newRoot")
	}
	e, err := expression.Parse(d.Get("newRoot"))
	if err != nil {
		return nil, err
	}
	return &replaceRootStage{kind: kind, newRoot: e}, nil
}

func parseReplaceWith(arg document.Value, _ int) (stage, error) {
	e, err := expression.Parse(arg)
	if err != nil {
		return nil, err
	}
	return &replaceRootStage{kind: "$replaceWith", newRoot: e}, nil
}

func (s *replaceRootStage) apply(env *runEnv, in docStream) docStream {
	return env.perDocument(in, func(_ context.Context, d *document.Document) ([]*document.Document, error) {
		v, err := env.eval(s.newRoot, d)
		if err != nil {
			return nil, err
		}
		root := v.DocumentValue()
		if root == nil {
			return nil, errors.TypeMismatch(s.kind, "object", v.Kind().String())
		}
		return one(root), nil
	})
}
