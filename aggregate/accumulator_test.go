package aggregate

import (
	"testing"

	"github.com/kbukum/viewkit/document"
)

type seqInput struct {
	seq int
	v   document.Value
}

// fold feeds each part into its own accumulator and merges them in order.
func fold(t *testing.T, op string, parts ...[]seqInput) document.Value {
	t.Helper()
	var acc accumulator
	for _, part := range parts {
		a, err := newAccumulator(op)
		if err != nil {
			t.Fatalf("newAccumulator(%s): %v", op, err)
		}
		for _, in := range part {
			a.add(in.seq, in.v)
		}
		if acc == nil {
			acc = a
		} else {
			acc.merge(a)
		}
	}
	return acc.result()
}

func nums(seq int, xs ...float64) []seqInput {
	out := make([]seqInput, len(xs))
	for i, x := range xs {
		out[i] = seqInput{seq + i, document.Number(x)}
	}
	return out
}

func TestAccumulators_MergedPartsMatchOnePass(t *testing.T) {
	str := func(seq int, s string) seqInput { return seqInput{seq, document.String(s)} }
	tests := []struct {
		name  string
		op    string
		whole []seqInput
		parts [][]seqInput
		want  document.Value
	}{
		{
			name:  "sum keeps small terms next to large ones",
			op:    "$sum",
			whole: nums(0, 1e16, 1, -1e16, 1),
			parts: [][]seqInput{nums(0, 1e16, 1), nums(2, -1e16, 1)},
			want:  document.Number(2),
		},
		{
			name:  "sum of tenths",
			op:    "$sum",
			whole: nums(0, 0.1, 0.2, 0.3, 0.4),
			parts: [][]seqInput{nums(2, 0.3, 0.4), nums(0, 0.1, 0.2)},
			want:  document.Number(1),
		},
		{
			name:  "avg",
			op:    "$avg",
			whole: nums(0, 1e16, 3, -1e16, 1),
			parts: [][]seqInput{nums(0, 1e16), nums(1, 3, -1e16), nums(3, 1)},
			want:  document.Number(1),
		},
		{
			name:  "addToSet orders by earliest contribution",
			op:    "$addToSet",
			whole: []seqInput{str(1, "y"), str(3, "x"), str(4, "z"), str(5, "y")},
			parts: [][]seqInput{
				{str(3, "x"), str(5, "y")},
				{str(1, "y"), str(4, "z")},
			},
			want: document.Array(document.String("y"), document.String("x"), document.String("z")),
		},
		{
			name:  "addToSet ignores missing",
			op:    "$addToSet",
			whole: []seqInput{{0, document.Missing()}, str(1, "a"), {2, document.Null()}},
			parts: [][]seqInput{{{0, document.Missing()}}, {str(1, "a"), {2, document.Null()}}},
			want:  document.Array(document.String("a"), document.Null()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fold(t, tt.op, tt.whole); !document.Equal(got, tt.want) {
				t.Errorf("one pass = %s, want %s", got, tt.want)
			}
			if got := fold(t, tt.op, tt.parts...); !document.Equal(got, tt.want) {
				t.Errorf("merged = %s, want %s", got, tt.want)
			}
		})
	}
}
