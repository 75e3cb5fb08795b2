package document

import (
	"math"
	"testing"
)

func TestDocumentSet_KeepsOrder(t *testing.T) {
	d := Doc(F("a", 1), F("b", 2))
	d.Set("a", Int(10))
	d.Set("c", Int(3))
	keys := d.Keys()
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("got %v, want %v", keys, want)
		}
	}
	if d.Get("a").NumberValue() != 10 {
		t.Errorf("expected a=10, got %v", d.Get("a"))
	}
}

func TestDocumentSet_MissingDeletes(t *testing.T) {
	d := Doc(F("a", 1), F("b", 2))
	d.Set("a", Missing())
	if d.Has("a") || d.Len() != 1 {
		t.Errorf("expected a removed, got %v", d)
	}
}

func TestLookup(t *testing.T) {
	d := MustParseDocument(`{
		"id": 1,
		"carrier": {"carrier_id": 9, "company": {"id": 3}},
		"carriers": [{"carrier_id": 1}, {"other": true}, {"carrier_id": 2}, 5],
		"nested": [[{"x": 1}], [{"x": 2}]],
		"nil": null
	}`)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"top level", "id", "1"},
		{"nested document", "carrier.company.id", "3"},
		{"absent field", "nope", "missing"},
		{"through scalar", "id.x", "missing"},
		{"through null", "nil.x", "missing"},
		{"broadcast over array", "carriers.carrier_id", "[1,2]"},
		{"broadcast no matches", "carriers.zzz", "[]"},
		{"nested arrays", "nested.x", "[[1],[2]]"},
		{"null field", "nil", "null"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Lookup(tc.path).String()
			if got != tc.want {
				t.Errorf("Lookup(%q) = %s, want %s", tc.path, got, tc.want)
			}
		})
	}
}

func TestSetPath_DoesNotMutate(t *testing.T) {
	d := MustParseDocument(`{"a": {"b": 1, "c": 2}, "z": 0}`)
	before := d.String()

	d2 := d.SetPath("a.b", String("x"))
	if d.String() != before {
		t.Errorf("input mutated: %s", d)
	}
	if got := d2.String(); got != `{"a":{"b":"x","c":2},"z":0}` {
		t.Errorf("unexpected result %s", got)
	}

	d3 := d.SetPath("z.new", Int(5))
	if got := d3.String(); got != `{"a":{"b":1,"c":2},"z":{"new":5}}` {
		t.Errorf("unexpected result %s", got)
	}

	d4 := d.RemovePath("a.c")
	if got := d4.String(); got != `{"a":{"b":1},"z":0}` {
		t.Errorf("unexpected result %s", got)
	}
	if d.String() != before {
		t.Errorf("input mutated: %s", d)
	}
}

func TestPaths_ThroughArrays(t *testing.T) {
	d := MustParseDocument(`{"a": [{"b": 1, "c": 2}, {"b": 2}, 3], "o": {"b": 1}}`)
	tests := []struct {
		name string
		got  func() string
		want string
	}{
		{"set broadcasts", func() string { return d.SetPath("a.b", Int(9)).String() },
			`{"a":[{"b":9,"c":2},{"b":9},3],"o":{"b":1}}`},
		{"remove broadcasts", func() string { return d.RemovePath("a.b").String() },
			`{"a":[{"c":2},{},3],"o":{"b":1}}`},
		{"include keeps arrays", func() string { return d.Include("a.b").String() },
			`{"a":[{"b":1},{"b":2}]}`},
		{"include nested", func() string { return d.Include("o.b").String() },
			`{"o":{"b":1}}`},
		{"merge element-wise", func() string { return d.Include("a.c").MergePaths(d.Include("a.b")).String() },
			`{"a":[{"c":2,"b":1},{"b":2}]}`},
		{"field lookup stops at arrays", func() string { return d.LookupField("a.b").String() },
			Missing().String()},
		{"field lookup through documents", func() string { return d.LookupField("o.b").String() },
			`1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
	if d.Include("zz.b") != nil {
		t.Error("Include of an absent path should be nil")
	}
	if got := d.String(); got != `{"a":[{"b":1,"c":2},{"b":2},3],"o":{"b":1}}` {
		t.Errorf("input mutated: %s", got)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numbers", Int(1), Number(1.0), true},
		{"missing vs null", Missing(), Null(), false},
		{"nan", Number(math.NaN()), Number(math.NaN()), true},
		{"arrays", MustParse(`[1, "a"]`), MustParse(`[1, "a"]`), true},
		{"array order", MustParse(`[1, 2]`), MustParse(`[2, 1]`), false},
		{"documents", MustParse(`{"a": 1, "b": [true]}`), MustParse(`{"a": 1, "b": [true]}`), true},
		{"document order matters", MustParse(`{"a": 1, "b": 2}`), MustParse(`{"b": 2, "a": 1}`), false},
		{"string vs number", String("1"), Int(1), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if tc.want && Hash(tc.a) != Hash(tc.b) {
				t.Errorf("equal values hash differently: %s, %s", tc.a, tc.b)
			}
		})
	}
}

func TestCompare_KindOrder(t *testing.T) {
	ordered := []Value{Missing(), Null(), Int(-1), Int(2), String("a"), String("b"),
		MustParse(`{"a": 1}`), MustParse(`[1]`), Bool(false), Bool(true)}
	for i := 0; i+1 < len(ordered); i++ {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("expected %s < %s", ordered[i], ordered[i+1])
		}
		if Compare(ordered[i+1], ordered[i]) <= 0 {
			t.Errorf("expected %s > %s", ordered[i+1], ordered[i])
		}
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Missing(), false},
		{Null(), false},
		{Bool(false), false},
		{Int(0), false},
		{String(""), false},
		{Bool(true), true},
		{Int(2), true},
		{String("x"), true},
		{Array(), true},
		{MustParse(`{}`), true},
	}
	for _, tc := range tests {
		if got := tc.v.Truthy(); got != tc.want {
			t.Errorf("Truthy(%s) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestSet_FirstOccurrenceOrder(t *testing.T) {
	s := NewSet()
	for _, v := range []Value{Int(3), Null(), Int(1), Number(3), Null(), MustParse(`{"a":1}`), MustParse(`{"a":1}`)} {
		s.Add(v)
	}
	got := Array(s.Values()...).String()
	if got != `[3,null,1,{"a":1}]` {
		t.Errorf("got %s", got)
	}
	if !s.Contains(Int(1)) || s.Contains(Int(2)) {
		t.Error("Contains mismatch")
	}
}

func TestSet_InsertReportsPosition(t *testing.T) {
	s := NewSet()
	tests := []struct {
		v     Value
		pos   int
		added bool
	}{
		{String("a"), 0, true},
		{String("b"), 1, true},
		{String("a"), 0, false},
		{MustParse(`["a"]`), 2, true},
		{String("b"), 1, false},
	}
	for _, tc := range tests {
		pos, added := s.Insert(tc.v)
		if pos != tc.pos || added != tc.added {
			t.Errorf("Insert(%s) = %d, %v, want %d, %v", tc.v, pos, added, tc.pos, tc.added)
		}
	}
}

func TestParse_PreservesOrder(t *testing.T) {
	d := MustParseDocument(`{"z": 1, "a": {"y": 2.5, "b": "s"}, "m": [null, true, -3]}`)
	if got := d.String(); got != `{"z":1,"a":{"y":2.5,"b":"s"},"m":[null,true,-3]}` {
		t.Errorf("round trip mismatch: %s", got)
	}
}

func TestParse_YAML(t *testing.T) {
	d := MustParseDocument("name: claims\nkeys:\n  - b\n  - a\nlimit: 10\nratio: 0.5\n")
	if got := d.String(); got != `{"name":"claims","keys":["b","a"],"limit":10,"ratio":0.5}` {
		t.Errorf("unexpected %s", got)
	}
}

func TestParseDocuments_Errors(t *testing.T) {
	if _, err := ParseDocuments([]byte(`{"a": 1}`)); err == nil {
		t.Error("expected error for non-array")
	}
	if _, err := ParseDocuments([]byte(`[{"a": 1}, 2]`)); err == nil {
		t.Error("expected error for non-object element")
	}
	docs, err := ParseDocuments([]byte(`[{"a": 1}, {"a": 2}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 docs, got %d", len(docs))
	}
}

func TestToGoFromGo(t *testing.T) {
	v := FromGo(map[string]any{"b": []any{1, "x", nil}, "a": 1.5})
	if got := v.String(); got != `{"a":1.5,"b":[1,"x",null]}` {
		t.Errorf("FromGo = %s", got)
	}
	g := ToGo(v).(map[string]any)
	if g["a"].(float64) != 1.5 {
		t.Errorf("ToGo a = %v", g["a"])
	}
	if g["b"].([]any)[0].(int64) != 1 {
		t.Errorf("ToGo b[0] = %v", g["b"])
	}
}
