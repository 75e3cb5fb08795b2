package definition

import (
	"fmt"
	"strconv"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

// ParseScript reads a mongo shell script made of db.* statements. Supported
// statements are db.createView, db.createCollection and, on a collection
// (db.name or db.getCollection("name")), createIndex, createIndexes,
// insertOne and insertMany. name is used in error messages.
func ParseScript(name string, src []byte) (*Definitions, error) {
	p := &parser{name: name, lex: newLexer(string(src))}
	p.advance()
	defs := &Definitions{}
	for p.tok.typ != tokenEOF {
		if p.isPunct(";") {
			p.advance()
			continue
		}
		if err := p.statement(defs); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

type parser struct {
	name string
	lex  *lexer
	tok  token
}

func (p *parser) advance() { p.tok = p.lex.next() }

func (p *parser) isPunct(s string) bool {
	return p.tok.typ == tokenPunct && p.tok.value == s
}

func (p *parser) errorf(format string, args ...any) error {
	if p.tok.typ == tokenError {
		return errors.InvalidDefinition(p.name, fmt.Sprintf("line %d: %s", p.tok.line, p.tok.value))
	}
	msg := fmt.Sprintf(format, args...)
	return errors.InvalidDefinition(p.name, fmt.Sprintf("line %d: %s", p.tok.line, msg))
}

func (p *parser) expect(punct string) error {
	if !p.isPunct(punct) {
		return p.errorf("expected %q, found %s", punct, p.tok)
	}
	p.advance()
	return nil
}

func (p *parser) ident() (string, error) {
	if p.tok.typ != tokenName {
		return "", p.errorf("expected a name, found %s", p.tok)
	}
	s := p.tok.value
	p.advance()
	return s, nil
}

func (p *parser) statement(defs *Definitions) error {
	root, err := p.ident()
	if err != nil {
		return err
	}
	if root != "db" {
		return p.errorf("statements must start with db, found %q", root)
	}
	if err := p.expect("."); err != nil {
		return err
	}
	member, err := p.ident()
	if err != nil {
		return err
	}
	switch member {
	case "createView":
		return p.createView(defs)
	case "createCollection":
		args, err := p.arguments(1, 2)
		if err != nil {
			return err
		}
		name, err := p.stringArg(args[0], "collection name")
		if err != nil {
			return err
		}
		defs.Collections = append(defs.Collections, name)
		return nil
	case "getCollection":
		args, err := p.arguments(1, 1)
		if err != nil {
			return err
		}
		coll, err := p.stringArg(args[0], "collection name")
		if err != nil {
			return err
		}
		if err := p.expect("."); err != nil {
			return err
		}
		return p.collectionCall(defs, coll)
	}
	if p.isPunct("(") {
		return p.errorf("unsupported database method %q", member)
	}
	if err := p.expect("."); err != nil {
		return err
	}
	return p.collectionCall(defs, member)
}

func (p *parser) createView(defs *Definitions) error {
	args, err := p.arguments(3, 4)
	if err != nil {
		return err
	}
	name, err := p.stringArg(args[0], "view name")
	if err != nil {
		return err
	}
	source, err := p.stringArg(args[1], "view source")
	if err != nil {
		return err
	}
	if !args[2].IsArray() {
		return p.errorf("createView %q: pipeline must be an array", name)
	}
	defs.Views = append(defs.Views, ViewDef{Name: name, Source: source, Pipeline: args[2].ArrayValue()})
	return nil
}

func (p *parser) collectionCall(defs *Definitions, coll string) error {
	method, err := p.ident()
	if err != nil {
		return err
	}
	switch method {
	case "createIndex":
		args, err := p.arguments(1, 2)
		if err != nil {
			return err
		}
		idx, err := p.indexKeys(coll, args[0])
		if err != nil {
			return err
		}
		defs.Indexes = append(defs.Indexes, idx)
	case "createIndexes":
		args, err := p.arguments(1, 2)
		if err != nil {
			return err
		}
		if !args[0].IsArray() {
			return p.errorf("createIndexes on %q: expected an array of key documents", coll)
		}
		for _, k := range args[0].ArrayValue() {
			idx, err := p.indexKeys(coll, k)
			if err != nil {
				return err
			}
			defs.Indexes = append(defs.Indexes, idx)
		}
	case "insertOne":
		args, err := p.arguments(1, 2)
		if err != nil {
			return err
		}
		if !args[0].IsDocument() {
			return p.errorf("insertOne on %q: expected an object", coll)
		}
		defs.Data = append(defs.Data, DataDef{Collection: coll, Documents: []*document.Document{args[0].DocumentValue()}})
	case "insertMany", "insert":
		args, err := p.arguments(1, 2)
		if err != nil {
			return err
		}
		docs, err := documentsOf(args[0])
		if err != nil {
			return p.errorf("%s on %q: %v", method, coll, err)
		}
		defs.Data = append(defs.Data, DataDef{Collection: coll, Documents: docs})
	default:
		return p.errorf("unsupported collection method %q", method)
	}
	return nil
}

func (p *parser) indexKeys(coll string, v document.Value) (IndexDef, error) {
	if !v.IsDocument() || v.DocumentValue().Len() == 0 {
		return IndexDef{}, p.errorf("index on %q: keys must be a non-empty object", coll)
	}
	return IndexDef{Collection: coll, Fields: v.DocumentValue().Keys()}, nil
}

func documentsOf(v document.Value) ([]*document.Document, error) {
	if v.IsDocument() {
		return []*document.Document{v.DocumentValue()}, nil
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("expected an array of objects, got %s", v.Kind())
	}
	out := make([]*document.Document, 0, len(v.ArrayValue()))
	for i, e := range v.ArrayValue() {
		if !e.IsDocument() {
			return nil, fmt.Errorf("element %d is %s, not an object", i, e.Kind())
		}
		out = append(out, e.DocumentValue())
	}
	return out, nil
}

func (p *parser) stringArg(v document.Value, what string) (string, error) {
	if v.Kind() != document.KindString || v.StringValue() == "" {
		return "", p.errorf("%s must be a non-empty string", what)
	}
	return v.StringValue(), nil
}

// arguments parses a parenthesised argument list of between lo and hi values.
func (p *parser) arguments(lo, hi int) ([]document.Value, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []document.Value
	for !p.isPunct(")") {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return nil, p.errorf("expected %d argument(s), got %d", lo, len(args))
		}
		return nil, p.errorf("expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	return args, nil
}

func (p *parser) value() (document.Value, error) {
	switch p.tok.typ {
	case tokenString:
		s := p.tok.value
		p.advance()
		return document.String(s), nil
	case tokenNumber:
		n, err := strconv.ParseFloat(p.tok.value, 64)
		if err != nil {
			return document.Missing(), p.errorf("malformed number %q", p.tok.value)
		}
		p.advance()
		return document.Number(n), nil
	case tokenName:
		return p.nameValue()
	case tokenPunct:
		switch p.tok.value {
		case "{":
			return p.object()
		case "[":
			return p.array()
		}
	}
	return document.Missing(), p.errorf("unexpected %s", p.tok)
}

// nameValue handles literals and the shell's value constructors.
func (p *parser) nameValue() (document.Value, error) {
	name := p.tok.value
	p.advance()
	switch name {
	case "true":
		return document.Bool(true), nil
	case "false":
		return document.Bool(false), nil
	case "null", "undefined":
		return document.Null(), nil
	case "NumberInt", "NumberLong", "NumberDecimal", "NumberDouble":
		args, err := p.arguments(1, 1)
		if err != nil {
			return document.Missing(), err
		}
		switch a := args[0]; a.Kind() {
		case document.KindNumber:
			return a, nil
		case document.KindString:
			n, err := strconv.ParseFloat(a.StringValue(), 64)
			if err != nil {
				return document.Missing(), p.errorf("%s: malformed number %q", name, a.StringValue())
			}
			return document.Number(n), nil
		}
		return document.Missing(), p.errorf("%s expects a number", name)
	case "ObjectId", "ISODate", "Date":
		args, err := p.arguments(1, 1)
		if err != nil {
			return document.Missing(), err
		}
		if args[0].Kind() != document.KindString {
			return document.Missing(), p.errorf("%s expects a string", name)
		}
		return args[0], nil
	}
	return document.Missing(), p.errorf("unknown identifier %q", name)
}

func (p *parser) object() (document.Value, error) {
	p.advance()
	d := document.New(0)
	for !p.isPunct("}") {
		var key string
		switch p.tok.typ {
		case tokenName, tokenString, tokenNumber:
			key = p.tok.value
			p.advance()
		default:
			return document.Missing(), p.errorf("expected a field name, found %s", p.tok)
		}
		if err := p.expect(":"); err != nil {
			return document.Missing(), err
		}
		v, err := p.value()
		if err != nil {
			return document.Missing(), err
		}
		d.Set(key, v)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	if err := p.expect("}"); err != nil {
		return document.Missing(), err
	}
	return document.DocumentValue(d), nil
}

func (p *parser) array() (document.Value, error) {
	p.advance()
	var elems []document.Value
	for !p.isPunct("]") {
		v, err := p.value()
		if err != nil {
			return document.Missing(), err
		}
		elems = append(elems, v)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	if err := p.expect("]"); err != nil {
		return document.Missing(), err
	}
	return document.Array(elems...), nil
}
