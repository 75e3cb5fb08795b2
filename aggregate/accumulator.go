package aggregate

import (
	"math"
	"sort"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
)

// accumulator folds the values of one group. Every value carries the
// sequence number of its input document, so partial accumulators built by
// different workers over disjoint inputs merge to the same result as a
// single sequential pass. Floating-point sums are the exception: they are
// compensated but may differ from a sequential pass in the last bit.
type accumulator interface {
	add(seq int, v document.Value)
	// merge folds another accumulator of the same kind into this one.
	merge(other accumulator)
	result() document.Value
}

var accumulatorFactories = map[string]func() accumulator{
	"$first":    func() accumulator { return &firstAcc{seq: -1} },
	"$last":     func() accumulator { return &lastAcc{seq: -1} },
	"$addToSet": func() accumulator { return newSetAcc() },
	"$push":     func() accumulator { return &pushAcc{} },
	"$sum":      func() accumulator { return &sumAcc{} },
	"$avg":      func() accumulator { return &avgAcc{} },
	"$min":      func() accumulator { return &extremeAcc{sign: -1, seq: -1} },
	"$max":      func() accumulator { return &extremeAcc{sign: 1, seq: -1} },
	"$count":    func() accumulator { return &sumAcc{} },
}

// AccumulatorNames returns the supported $group accumulators, sorted.
func AccumulatorNames() []string {
	names := make([]string, 0, len(accumulatorFactories))
	for n := range accumulatorFactories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func newAccumulator(op string) (accumulator, error) {
	f, ok := accumulatorFactories[op]
	if !ok {
		return nil, errors.InvalidExpression(op, "unknown group accumulator")
	}
	return f(), nil
}

type seqValue struct {
	seq int
	v   document.Value
}

// $first keeps the value of the lowest sequence number; a missing value
// counts and becomes null.
type firstAcc struct {
	seq int
	v   document.Value
}

func (a *firstAcc) add(seq int, v document.Value) {
	if a.seq < 0 || seq < a.seq {
		a.seq, a.v = seq, v
	}
}

func (a *firstAcc) merge(other accumulator) {
	o := other.(*firstAcc)
	if o.seq >= 0 {
		a.add(o.seq, o.v)
	}
}

func (a *firstAcc) result() document.Value { return a.v.OrNull() }

type lastAcc struct {
	seq int
	v   document.Value
}

func (a *lastAcc) add(seq int, v document.Value) {
	if seq > a.seq {
		a.seq, a.v = seq, v
	}
}

func (a *lastAcc) merge(other accumulator) {
	o := other.(*lastAcc)
	if o.seq >= 0 {
		a.add(o.seq, o.v)
	}
}

func (a *lastAcc) result() document.Value { return a.v.OrNull() }

// $addToSet keeps distinct values under structural equality, ordered by the
// first document that contributed each. Missing values are ignored.
type setAcc struct {
	set *document.Set
	// seqs holds the earliest input sequence of each set position.
	seqs []int
}

func newSetAcc() *setAcc { return &setAcc{set: document.NewSet()} }

func (a *setAcc) add(seq int, v document.Value) {
	if v.IsMissing() {
		return
	}
	i, added := a.set.Insert(v)
	switch {
	case added:
		a.seqs = append(a.seqs, seq)
	case seq < a.seqs[i]:
		a.seqs[i] = seq
	}
}

func (a *setAcc) merge(other accumulator) {
	o := other.(*setAcc)
	for i, v := range o.set.Values() {
		a.add(o.seqs[i], v)
	}
}

func (a *setAcc) result() document.Value {
	values := a.set.Values()
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return a.seqs[order[i]] < a.seqs[order[j]] })
	out := make([]document.Value, len(order))
	for i, p := range order {
		out[i] = values[p]
	}
	return document.Array(out...)
}

// $push keeps every non-missing value in input order.
type pushAcc struct {
	items []seqValue
}

func (a *pushAcc) add(seq int, v document.Value) {
	if !v.IsMissing() {
		a.items = append(a.items, seqValue{seq: seq, v: v})
	}
}

func (a *pushAcc) merge(other accumulator) {
	a.items = append(a.items, other.(*pushAcc).items...)
}

func (a *pushAcc) result() document.Value {
	items := append([]seqValue(nil), a.items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].seq < items[j].seq })
	out := make([]document.Value, len(items))
	for i, it := range items {
		out[i] = it.v
	}
	return document.Array(out...)
}

// fsum is a Neumaier compensated float sum. Partial sums built over
// disjoint inputs merge without losing the low-order bits each one kept, so
// a parallel $group differs from a sequential one by at most rounding of the
// final addition.
type fsum struct {
	sum, c float64
}

func (f *fsum) add(x float64) {
	t := f.sum + x
	if math.Abs(f.sum) >= math.Abs(x) {
		f.c += (f.sum - t) + x
	} else {
		f.c += (x - t) + f.sum
	}
	f.sum = t
}

func (f *fsum) merge(o fsum) {
	f.add(o.sum)
	f.c += o.c
}

func (f *fsum) value() float64 { return f.sum + f.c }

// $sum adds numeric values and ignores the rest. $count uses it with a
// constant 1 operand.
type sumAcc struct {
	sum fsum
}

func (a *sumAcc) add(_ int, v document.Value) {
	if v.Kind() == document.KindNumber {
		a.sum.add(v.NumberValue())
	}
}

func (a *sumAcc) merge(other accumulator) { a.sum.merge(other.(*sumAcc).sum) }

func (a *sumAcc) result() document.Value { return document.Number(a.sum.value()) }

type avgAcc struct {
	sum   fsum
	count int
}

func (a *avgAcc) add(_ int, v document.Value) {
	if v.Kind() == document.KindNumber {
		a.sum.add(v.NumberValue())
		a.count++
	}
}

func (a *avgAcc) merge(other accumulator) {
	o := other.(*avgAcc)
	a.sum.merge(o.sum)
	a.count += o.count
}

func (a *avgAcc) result() document.Value {
	if a.count == 0 {
		return document.Null()
	}
	return document.Number(a.sum.value() / float64(a.count))
}

// extremeAcc implements $min (sign -1) and $max (sign 1) over non-null
// values. Ties keep the earliest document's value.
type extremeAcc struct {
	sign int
	seq  int
	v    document.Value
}

func (a *extremeAcc) add(seq int, v document.Value) {
	if v.IsNullish() {
		return
	}
	if a.seq < 0 {
		a.seq, a.v = seq, v
		return
	}
	c := document.Compare(v, a.v) * a.sign
	if c > 0 || (c == 0 && seq < a.seq) {
		a.seq, a.v = seq, v
	}
}

func (a *extremeAcc) merge(other accumulator) {
	o := other.(*extremeAcc)
	if o.seq >= 0 {
		a.add(o.seq, o.v)
	}
}

func (a *extremeAcc) result() document.Value {
	if a.seq < 0 {
		return document.Null()
	}
	return a.v
}
