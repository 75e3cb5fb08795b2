package expression

import (
	"testing"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

func eval(t *testing.T, expr, doc string, env *Bindings) document.Value {
	t.Helper()
	e, err := Parse(document.MustParse(expr))
	if err != nil {
		t.Fatalf("Parse(%s): %v", expr, err)
	}
	var d *document.Document
	if doc != "" {
		d = document.MustParseDocument(doc)
	}
	v, err := Evaluate(e, d, env)
	if err != nil {
		t.Fatalf("Evaluate(%s): %v", expr, err)
	}
	return v
}

func TestEvaluate(t *testing.T) {
	doc := `{"a": 1, "s": "x", "arr": [1, 2, 3], "nested": {"b": 2}, "items": [{"k": 1}, {"k": 2}, {"j": 3}], "n": null}`
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"field", `"$a"`, `1`},
		{"nested field", `"$nested.b"`, `2`},
		{"broadcast", `"$items.k"`, `[1, 2]`},
		{"literal", `"plain"`, `"plain"`},
		{"isArray true", `{"$isArray": "$arr"}`, `true`},
		{"isArray list form", `{"$isArray": ["$arr"]}`, `true`},
		{"isArray false", `{"$isArray": "$a"}`, `false`},
		{"isArray missing", `{"$isArray": "$nope"}`, `false`},
		{"cond doc form", `{"$cond": {"if": "$a", "then": "yes", "else": "no"}}`, `"yes"`},
		{"cond array form", `{"$cond": ["$n", "yes", "no"]}`, `"no"`},
		{"cond empty string falsy", `{"$cond": ["", 1, 2]}`, `2`},
		{"cond zero falsy", `{"$cond": [0, 1, 2]}`, `2`},
		{"in array", `{"$in": [2, "$arr"]}`, `true`},
		{"in scalar", `{"$in": [1, "$a"]}`, `true`},
		{"in missing", `{"$in": [1, "$nope"]}`, `false`},
		{"array literal nulls missing", `["$nope", 1]`, `[null, 1]`},
		{"object omits missing", `{"x": "$nope", "y": "$a"}`, `{"y": 1}`},
		{"eq", `{"$eq": ["$a", 1]}`, `true`},
		{"eq missing null", `{"$eq": ["$nope", null]}`, `false`},
		{"gt", `{"$gt": ["$a", 0]}`, `true`},
		{"lte", `{"$lte": ["$a", 0]}`, `false`},
		{"cmp", `{"$cmp": ["a", "b"]}`, `-1`},
		{"and", `{"$and": [true, "$a"]}`, `true`},
		{"or", `{"$or": [false, "$n"]}`, `false`},
		{"not", `{"$not": ["$n"]}`, `true`},
		{"ifNull", `{"$ifNull": ["$nope", "$n", "d"]}`, `"d"`},
		{"size", `{"$size": "$arr"}`, `3`},
		{"concat", `{"$concat": ["$s", "-", "y"]}`, `"x-y"`},
		{"concat null", `{"$concat": ["$s", "$n"]}`, `null`},
		{"concatArrays", `{"$concatArrays": ["$arr", [4]]}`, `[1, 2, 3, 4]`},
		{"arrayElemAt", `{"$arrayElemAt": ["$arr", -1]}`, `3`},
		{"first", `{"$first": "$arr"}`, `1`},
		{"last", `{"$last": "$arr"}`, `3`},
		{"literal op", `{"$literal": "$a"}`, `"$a"`},
		{"add", `{"$add": ["$a", 2, 3]}`, `6`},
		{"subtract", `{"$subtract": [10, "$a"]}`, `9`},
		{"multiply", `{"$multiply": [2, 3]}`, `6`},
		{"divide", `{"$divide": [9, 2]}`, `4.5`},
		{"add null", `{"$add": ["$a", "$nope"]}`, `null`},
		{"toString", `{"$toString": "$a"}`, `"1"`},
		{"type", `{"$type": "$nested"}`, `"object"`},
		{"mergeObjects", `{"$mergeObjects": ["$nested", {"c": 3}, null]}`, `{"b": 2, "c": 3}`},
		{"map", `{"$map": {"input": "$arr", "as": "x", "in": {"$multiply": ["$$x", 10]}}}`, `[10, 20, 30]`},
		{"filter", `{"$filter": {"input": "$arr", "cond": {"$gt": ["$$this", 1]}}}`, `[2, 3]`},
		{"let", `{"$let": {"vars": {"v": "$a"}, "in": {"$add": ["$$v", 1]}}}`, `2`},
		{"root", `"$$ROOT.nested.b"`, `2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eval(t, tt.expr, doc, nil)
			want := document.MustParse(tt.want)
			if !document.Equal(got, want) {
				t.Errorf("got %s, want %s", got, want)
			}
		})
	}
}

func TestEvaluateMissing(t *testing.T) {
	for _, expr := range []string{`"$nope"`, `"$a.b"`, `"$$REMOVE"`, `{"$arrayElemAt": [[1], 5]}`} {
		if v := eval(t, expr, `{"a": 1}`, nil); !v.IsMissing() {
			t.Errorf("%s = %s, want missing", expr, v)
		}
	}
}

func TestVariables(t *testing.T) {
	env := NewBindings().With("x", document.Int(7)).With("obj", document.DocumentValue(document.Doc(document.F("k", "v"))))
	if v := eval(t, `"$$x"`, "", env); v.NumberValue() != 7 {
		t.Errorf("$$x = %s", v)
	}
	if v := eval(t, `"$$obj.k"`, "", env); v.StringValue() != "v" {
		t.Errorf("$$obj.k = %s", v)
	}
	shadow := env.With("x", document.Int(8))
	if v := eval(t, `"$$x"`, "", shadow); v.NumberValue() != 8 {
		t.Errorf("shadowed $$x = %s", v)
	}
	if v := eval(t, `"$$x"`, "", env); v.NumberValue() != 7 {
		t.Errorf("parent environment changed: $$x = %s", v)
	}

	e := MustParse(`"$$undefined"`)
	_, err := Evaluate(e, nil, env)
	if !errors.Is(err, errors.ErrCodeUndefinedVariable) {
		t.Fatalf("expected UNDEFINED_VARIABLE, got %v", err)
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		code errors.ErrorCode
	}{
		{"in against document", `{"$in": [1, {"a": 1}]}`, errors.ErrCodeTypeMismatch},
		{"size of scalar", `{"$size": 1}`, errors.ErrCodeTypeMismatch},
		{"concat number", `{"$concat": ["a", 1]}`, errors.ErrCodeTypeMismatch},
		{"divide by zero", `{"$divide": [1, 0]}`, errors.ErrCodeInvalidExpression},
		{"add string", `{"$add": [1, "a"]}`, errors.ErrCodeTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(MustParse(tt.expr), document.New(0), nil)
			if !errors.Is(err, tt.code) {
				t.Errorf("got %v, want %s", err, tt.code)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"bare dollar", `"$"`},
		{"unknown operator", `{"$frobnicate": 1}`},
		{"mixed keys", `{"$eq": [1, 1], "x": 1}`},
		{"field then operator", `{"x": 1, "$eq": [1, 1]}`},
		{"arity", `{"$eq": [1]}`},
		{"cond missing else", `{"$cond": {"if": true, "then": 1}}`},
		{"cond unknown arg", `{"$cond": {"if": true, "then": 1, "else": 2, "x": 3}}`},
		{"let rebind root", `{"$let": {"vars": {"ROOT": 1}, "in": 1}}`},
		{"empty variable", `"$$"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(document.MustParse(tt.expr))
			if !errors.Is(err, errors.ErrCodeInvalidExpression) {
				t.Errorf("got %v, want INVALID_EXPRESSION", err)
			}
		})
	}
}

func TestEvaluateDoesNotMutate(t *testing.T) {
	d := document.MustParseDocument(`{"a": {"b": [1, 2]}, "c": 1}`)
	before := d.String()
	e := MustParse(`{"x": "$a", "y": {"$concatArrays": ["$a.b", [3]]}, "z": {"$mergeObjects": ["$a", {"b": 0}]}}`)
	if _, err := Evaluate(e, d, nil); err != nil {
		t.Fatal(err)
	}
	if d.String() != before {
		t.Errorf("document mutated: %s -> %s", before, d.String())
	}
}

func TestParsePath(t *testing.T) {
	ref, err := ParsePath("$unwind", "$a.b")
	if err != nil || ref.Path != "a.b" {
		t.Fatalf("ParsePath = %v, %v", ref, err)
	}
	for _, bad := range []string{"a", "$", "$$a"} {
		if _, err := ParsePath("$unwind", bad); err == nil {
			t.Errorf("ParsePath(%q) succeeded", bad)
		}
	}
}

func TestIsConstant(t *testing.T) {
	if !IsConstant(MustParse(`[1, {"a": "x"}]`)) {
		t.Error("literal array should be constant")
	}
	if IsConstant(MustParse(`{"a": "$x"}`)) {
		t.Error("field reference is not constant")
	}
}
