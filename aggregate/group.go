package aggregate

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/expression"
	"github.com/kbukum/viewkit/stream"
)

// groupStage partitions its input by the value of the _id expression and
// emits one document per partition, in order of each partition's first
// document.
type groupStage struct {
	id     expression.Expr
	fields []groupField
}

type groupField struct {
	name string
	op   string
	expr expression.Expr
}

func parseGroup(arg document.Value, _ int) (stage, error) {
	const kind = "$group"
	d, err := stageObject(kind, arg)
	if err != nil {
		return nil, err
	}
	if !d.Has("_id") {
		return nil, errors.MissingRequiredField(kind, "_id")
	}
	s := &groupStage{}
	for _, f := range d.Fields() {
		if f.Name == "_id" {
			if s.id, err = expression.Parse(f.Value); err != nil {
				return nil, err
			}
			continue
		}
		if strings.ContainsAny(f.Name, ".") || strings.HasPrefix(f.Name, "$") {
			return nil, errors.InvalidExpression(kind, "invalid output field name '"+f.Name+"'")
		}
		spec := f.Value.DocumentValue()
		if spec == nil || spec.Len() != 1 {
			return nil, errors.InvalidExpression(kind, "field '"+f.Name+"' must be an accumulator object like {$first: expr}")
		}
		acc := spec.Fields()[0]
		if _, err := newAccumulator(acc.Name); err != nil {
			return nil, err
		}
		var e expression.Expr
		if acc.Name == "$count" {
			if ad := acc.Value.DocumentValue(); ad == nil || ad.Len() != 0 {
				return nil, errors.InvalidExpression("$count", "accumulator takes an empty object")
			}
			e = &expression.Literal{Value: document.Int(1)}
		} else if e, err = expression.Parse(acc.Value); err != nil {
			return nil, err
		}
		s.fields = append(s.fields, groupField{name: f.Name, op: acc.Name, expr: e})
	}
	return s, nil
}

// partialChunk is the number of documents folded into one partial table
// per worker task.
const partialChunk = 256

func (s *groupStage) apply(env *runEnv, in docStream) docStream {
	return stream.Deferred(in, func(ctx context.Context, it stream.Iterator[*document.Document]) ([]*document.Document, error) {
		if env.opts.workers <= 1 {
			table := newGroupTable(s)
			for seq := 0; ; seq++ {
				d, ok, err := it.Next(ctx)
				if err != nil {
					return nil, err
				}
				if !ok {
					break
				}
				if err := table.add(env, seq, d); err != nil {
					return nil, err
				}
			}
			return table.results(), nil
		}
		docs, err := stream.CollectIter(ctx, it)
		if err != nil {
			return nil, err
		}
		return s.groupParallel(ctx, env, docs)
	})
}

// groupParallel folds contiguous chunks into partial tables on up to
// workers goroutines, then merges the partials.
func (s *groupStage) groupParallel(ctx context.Context, env *runEnv, docs []*document.Document) ([]*document.Document, error) {
	chunks := (len(docs) + partialChunk - 1) / partialChunk
	partials := make([]*groupTable, chunks)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(env.opts.workers)
	for c := 0; c < chunks; c++ {
		lo := c * partialChunk
		hi := min(lo+partialChunk, len(docs))
		g.Go(func() error {
			table := newGroupTable(s)
			for seq := lo; seq < hi; seq++ {
				if err := gctx.Err(); err != nil {
					return errors.Cancelled(err)
				}
				if err := table.add(env, seq, docs[seq]); err != nil {
					return err
				}
			}
			partials[c] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := newGroupTable(s)
	for _, p := range partials {
		merged.merge(p)
	}
	return merged.results(), nil
}

type group struct {
	key  document.Value
	seq  int
	accs []accumulator
}

type groupTable struct {
	stage   *groupStage
	buckets map[uint64][]int
	groups  []*group
}

func newGroupTable(s *groupStage) *groupTable {
	return &groupTable{stage: s, buckets: make(map[uint64][]int)}
}

// find returns the group for key, creating it when absent.
func (t *groupTable) find(key document.Value, seq int) *group {
	h := document.Hash(key)
	for _, i := range t.buckets[h] {
		if g := t.groups[i]; document.Equal(g.key, key) {
			if seq < g.seq {
				g.seq = seq
			}
			return g
		}
	}
	g := &group{key: key, seq: seq, accs: make([]accumulator, len(t.stage.fields))}
	for i, f := range t.stage.fields {
		g.accs[i], _ = newAccumulator(f.op)
	}
	t.buckets[h] = append(t.buckets[h], len(t.groups))
	t.groups = append(t.groups, g)
	return g
}

// A missing _id value groups with null.
func (t *groupTable) add(env *runEnv, seq int, d *document.Document) error {
	key, err := env.eval(t.stage.id, d)
	if err != nil {
		return errors.WithDocument(err, d.ID())
	}
	g := t.find(key.OrNull(), seq)
	for i, f := range t.stage.fields {
		v, err := env.eval(f.expr, d)
		if err != nil {
			return errors.WithDocument(err, d.ID())
		}
		g.accs[i].add(seq, v)
	}
	return nil
}

func (t *groupTable) merge(other *groupTable) {
	for _, og := range other.groups {
		g := t.find(og.key, og.seq)
		for i := range g.accs {
			g.accs[i].merge(og.accs[i])
		}
	}
}

func (t *groupTable) results() []*document.Document {
	groups := append([]*group(nil), t.groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].seq < groups[j].seq })
	out := make([]*document.Document, len(groups))
	for i, g := range groups {
		d := document.New(1 + len(g.accs))
		d.Set("_id", g.key)
		for j, f := range t.stage.fields {
			d.Set(f.name, g.accs[j].result())
		}
		out[i] = d
	}
	return out
}
