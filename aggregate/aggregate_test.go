package aggregate

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/stream"
)

const claimsPipeline = `[
	{"$lookup": {"from": "account_groups", "localField": "account_group_id", "foreignField": "account_group_id", "as": "account_group"}},
	{"$unwind": "$account_group"},
	{"$lookup": {"from": "carriers", "localField": "account_group.carrier_id", "foreignField": "carrier_id", "as": "carrier"}},
	{"$unwind": "$carrier"},
	{"$lookup": {
		"from": "companies",
		"let": {"company_id": "$carrier.company_id"},
		"pipeline": [{"$match": {"$expr": {"$eq": ["$id", "$$company_id"]}}}],
		"as": "company"
	}},
	{"$unwind": "$company"},
	{"$project": {
		"_id": "$id",
		"amount": 1,
		"account_group_name": "$account_group.account_group_name",
		"carrier_name": "$carrier.carrier_name",
		"company_name": "$company.company_name",
		"company_location": "$company.company_location"
	}}
]`

func claimsCatalog(t *testing.T, accountGroupID int) (*collection.Catalog, *collection.Memory) {
	t.Helper()
	cat := collection.NewCatalog()
	claims := collection.NewMemory("claims", document.Doc(
		document.F("id", 1), document.F("account_group_id", accountGroupID), document.F("amount", 100),
	))
	cat.Register(claims)
	cat.Register(collection.NewMemory("account_groups",
		parseDocs(t, `[{"account_group_id": 5, "carrier_id": 9, "account_group_name": "A"}]`)...))
	cat.Register(collection.NewMemory("carriers",
		parseDocs(t, `[{"carrier_id": 9, "company_id": 3, "carrier_name": "C"}]`)...))
	cat.Register(collection.NewMemory("companies",
		parseDocs(t, `[{"id": 3, "company_name": "Co", "company_location": "NY"}]`)...))
	return cat, claims
}

func TestScenario_FlatView(t *testing.T) {
	tests := []struct {
		name           string
		accountGroupID int
		want           string
	}{
		{
			name:           "all joins match",
			accountGroupID: 5,
			want:           `[{"_id": 1, "amount": 100, "account_group_name": "A", "carrier_name": "C", "company_name": "Co", "company_location": "NY"}]`,
		},
		{
			name:           "unmatched account group drops the claim",
			accountGroupID: 99,
			want:           `[]`,
		},
	}
	for _, tt := range tests {
		for _, workers := range []int{1, 4} {
			t.Run(tt.name, func(t *testing.T) {
				cat, claims := claimsCatalog(t, tt.accountGroupID)
				got := runText(t, claimsPipeline, claims, cat, WithWorkers(workers))
				assertDocs(t, got, tt.want)
			})
		}
	}
}

func TestScenario_PreservedEmptyJoinGroupsNull(t *testing.T) {
	cat := collection.NewCatalog()
	companies := collection.NewMemory("companies", parseDocs(t, `[{"id": 3, "company_name": "Co"}]`)...)
	cat.Register(companies)
	cat.Register(collection.NewMemory("carriers"))

	const prefix = `
		{"$lookup": {"from": "carriers", "localField": "id", "foreignField": "company_id", "as": "carriers"}},
		{"$unwind": {"path": "$carriers", "preserveNullAndEmptyArrays": true}}`

	got := runText(t, "["+prefix+"]", companies, cat)
	assertDocs(t, got, `[{"id": 3, "company_name": "Co", "carriers": null}]`)

	got = runText(t, "["+prefix+`,
		{"$group": {"_id": "$id", "company_name": {"$first": "$company_name"}, "carriers": {"$addToSet": "$carriers"}}}
	]`, companies, cat)
	assertDocs(t, got, `[{"_id": 3, "company_name": "Co", "carriers": [null]}]`)
}

func TestRun_Idempotent(t *testing.T) {
	cat, claims := claimsCatalog(t, 5)
	p := compile(t, claimsPipeline)
	first, err := Collect(context.Background(), p, claims, cat)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Collect(context.Background(), p, claims, cat)
	if err != nil {
		t.Fatal(err)
	}
	assertDocs(t, second, "["+first[0].String()+"]")
}

func TestRun_NilSourceAndResolver(t *testing.T) {
	got := runText(t, `[{"$documents": [{"a": 1}, {"a": 2}]}, {"$match": {"a": 2}}]`, nil, nil)
	assertDocs(t, got, `[{"a": 2}]`)

	err := runErr(t, `[{"$lookup": {"from": "nowhere", "localField": "a", "foreignField": "b", "as": "x"}}]`,
		source(t, `[{"a": 1}]`), nil)
	assertCode(t, err, errors.ErrCodeUnknownCollection)
}

func TestRun_ErrorCarriesStageAndDocument(t *testing.T) {
	err := runErr(t, `[{"$match": {"amount": {"$gt": 0}}}, {"$match": {"$expr": "$amount"}}]`,
		source(t, `[{"_id": 7, "amount": 5}]`), nil)
	assertCode(t, err, errors.ErrCodeTypeMismatch)

	appErr, _ := errors.AsAppError(err)
	if appErr.Details[errors.DetailStage] != 1 {
		t.Errorf("stage = %v, want 1", appErr.Details[errors.DetailStage])
	}
	if appErr.Details[errors.DetailStageKind] != "$match" {
		t.Errorf("stage kind = %v", appErr.Details[errors.DetailStageKind])
	}
	if appErr.Details[errors.DetailDocumentID] != int64(7) {
		t.Errorf("document = %v", appErr.Details[errors.DetailDocumentID])
	}
}

func TestRun_ErrorStagePath(t *testing.T) {
	cat := collection.NewCatalog()
	cat.Register(collection.NewMemory("other", parseDocs(t, `[{"v": 1}]`)...))
	tests := []struct {
		name  string
		text  string
		stage int
		kind  string
		path  string
	}{
		{
			name:  "later stages pass the error on untouched",
			text:  `[{"$match": {"$expr": "$amount"}}, {"$project": {"amount": 1}}, {"$limit": 5}]`,
			stage: 0, kind: "$match", path: "[0]",
		},
		{
			name: "correlated sub-pipeline",
			text: `[
				{"$match": {"amount": {"$gt": 0}}},
				{"$match": {}},
				{"$lookup": {"from": "other", "pipeline": [{"$match": {"$expr": "$v"}}], "as": "o"}}
			]`,
			stage: 2, kind: "$lookup", path: "[2 0]",
		},
		{
			name: "facet branch",
			text: `[
				{"$facet": {"ok": [{"$limit": 1}], "bad": [{"$project": {"amount": 1}}, {"$match": {"$expr": "$amount"}}]}},
				{"$limit": 1}
			]`,
			stage: 0, kind: "$facet", path: "[0 1]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runErr(t, tt.text, source(t, `[{"_id": 7, "amount": 5}]`), cat)
			assertCode(t, err, errors.ErrCodeTypeMismatch)
			appErr, _ := errors.AsAppError(err)
			if appErr.Details[errors.DetailStage] != tt.stage || appErr.Details[errors.DetailStageKind] != tt.kind {
				t.Errorf("stage = %v %v, want %d %s", appErr.Details[errors.DetailStage], appErr.Details[errors.DetailStageKind], tt.stage, tt.kind)
			}
			if got := fmt.Sprint(appErr.Details[errors.DetailStagePath]); got != tt.path {
				t.Errorf("stage path = %s, want %s", got, tt.path)
			}
		})
	}
}

func TestRun_UndefinedVariable(t *testing.T) {
	cat := collection.NewCatalog()
	cat.Register(collection.NewMemory("other", parseDocs(t, `[{"x": 1}]`)...))
	err := runErr(t, `[{"$lookup": {
		"from": "other",
		"let": {"a": "$a"},
		"pipeline": [{"$match": {"$expr": {"$eq": ["$x", "$$b"]}}}],
		"as": "joined"
	}}]`, source(t, `[{"_id": 1, "a": 1}]`), cat)
	assertCode(t, err, errors.ErrCodeUndefinedVariable)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		code  errors.ErrorCode
		stage int
	}{
		{"unknown stage", `[{"$match": {}}, {"$bogus": {}}]`, errors.ErrCodeUnknownStageKind, 1},
		{"stage with two fields", `[{"$match": {}, "$limit": 1}]`, errors.ErrCodeInvalidExpression, 0},
		{"group without _id", `[{"$group": {"n": {"$sum": 1}}}]`, errors.ErrCodeMissingRequiredField, 0},
		{"unknown accumulator", `[{"$group": {"_id": null, "n": {"$median": 1}}}]`, errors.ErrCodeInvalidExpression, 0},
		{"lookup without as", `[{"$lookup": {"from": "x", "localField": "a", "foreignField": "b"}}]`, errors.ErrCodeMissingRequiredField, 0},
		{"lookup without foreignField", `[{"$lookup": {"from": "x", "localField": "a", "as": "y"}}]`, errors.ErrCodeMissingRequiredField, 0},
		{"lookup let without pipeline", `[{"$lookup": {"from": "x", "let": {"v": 1}, "as": "y"}}]`, errors.ErrCodeMissingRequiredField, 0},
		{"lookup bad variable", `[{"$lookup": {"from": "x", "let": {"ROOT": 1}, "pipeline": [], "as": "y"}}]`, errors.ErrCodeInvalidExpression, 0},
		{"unwind without dollar", `[{"$unwind": "tags"}]`, errors.ErrCodeInvalidExpression, 0},
		{"project mixed modes", `[{"$project": {"a": 1, "b": 0}}]`, errors.ErrCodeInvalidExpression, 0},
		{"bad operator arity", `[{"$match": {"$expr": {"$isArray": [1, 2]}}}]`, errors.ErrCodeInvalidExpression, 0},
		{"documents not first", `[{"$match": {}}, {"$documents": []}]`, errors.ErrCodeInvalidExpression, 1},
		{"negative skip", `[{"$skip": -1}]`, errors.ErrCodeInvalidExpression, 0},
		{"bad sort direction", `[{"$sort": {"a": 2}}]`, errors.ErrCodeInvalidExpression, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := ParseStages([]byte(tt.text))
			if err != nil {
				t.Fatal(err)
			}
			_, err = Compile(defs)
			assertCode(t, err, tt.code)
			appErr, _ := errors.AsAppError(err)
			if appErr.Details[errors.DetailStage] != tt.stage {
				t.Errorf("stage = %v, want %d", appErr.Details[errors.DetailStage], tt.stage)
			}
		})
	}
}

func TestParseStages_NotArray(t *testing.T) {
	if _, err := ParseStages([]byte(`{"$match": {}}`)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestPipeline_Stages(t *testing.T) {
	p := compile(t, `[{"$match": {"a": 1}}, {"$limit": 5}]`, WithName("orders"))
	if p.Name() != "orders" || p.Len() != 2 {
		t.Fatalf("name = %q len = %d", p.Name(), p.Len())
	}
	infos := p.Stages()
	if infos[1].Kind != "$limit" || infos[1].Index != 1 {
		t.Errorf("stage 1 = %+v", infos[1])
	}
	defs := p.Definitions()
	if got := defs[0].String(); got != `{"$match":{"a":1}}` {
		t.Errorf("definition 0 = %s", got)
	}
}

func TestCompileCache(t *testing.T) {
	cache, err := NewCompileCache(8)
	if err != nil {
		t.Fatal(err)
	}
	const text = `[{"$match": {"a": 1}}]`
	p1 := compile(t, text, WithCache(cache))
	p2 := compile(t, text, WithCache(cache))
	if &p1.stages[0] != &p2.stages[0] {
		t.Error("expected compiled stages to be shared")
	}
	compile(t, `[{"$match": {"a": 2}}]`, WithCache(cache))
	if cache.Len() != 2 {
		t.Errorf("cache len = %d, want 2", cache.Len())
	}
}

// countingCollection records how often it is scanned.
type countingCollection struct {
	*collection.Memory
	scans atomic.Int32
}

func (c *countingCollection) Scan(ctx context.Context) (stream.Iterator[*document.Document], error) {
	c.scans.Add(1)
	return c.Memory.Scan(ctx)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	foreign := &countingCollection{Memory: collection.NewMemory("foreign", parseDocs(t, `[{"k": 1}]`)...)}
	resolver := collection.ResolverFunc(func(context.Context, string) (collection.Collection, error) {
		return foreign, nil
	})
	p := compile(t, `[{"$lookup": {"from": "foreign", "localField": "k", "foreignField": "k", "as": "f"}}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, p, source(t, `[{"k": 1}, {"k": 2}]`), resolver)
	assertCode(t, err, errors.ErrCodeCancelled)
	if n := foreign.scans.Load(); n != 0 {
		t.Errorf("foreign collection scanned %d times after cancellation", n)
	}
}

func TestRun_CancelledMidRun(t *testing.T) {
	foreign := &countingCollection{Memory: collection.NewMemory("foreign", parseDocs(t, `[{"k": 1}]`)...)}
	resolver := collection.ResolverFunc(func(context.Context, string) (collection.Collection, error) {
		return foreign, nil
	})
	p := compile(t, `[
		{"$lookup": {"from": "foreign", "localField": "k", "foreignField": "k", "as": "f"}},
		{"$project": {"k": 1}}
	]`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	it := p.Run(ctx, source(t, `[{"k": 1}, {"k": 2}, {"k": 3}]`), resolver)
	defer it.Close()

	if _, ok, err := it.Next(ctx); err != nil || !ok {
		t.Fatalf("first Next = %v, %v", ok, err)
	}
	cancel()
	_, ok, err := it.Next(ctx)
	if ok {
		t.Fatal("expected no document after cancellation")
	}
	assertCode(t, err, errors.ErrCodeCancelled)
	if n := foreign.scans.Load(); n != 1 {
		t.Errorf("foreign collection scanned %d times, want 1", n)
	}
}

func TestRun_ReadsNothingBeforeNext(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			src := &countingCollection{Memory: collection.NewMemory("src", parseDocs(t, `[{"k": 1}, {"k": 2}]`)...)}
			foreign := &countingCollection{Memory: collection.NewMemory("foreign", parseDocs(t, `[{"k": 1}]`)...)}
			resolver := collection.ResolverFunc(func(context.Context, string) (collection.Collection, error) {
				return foreign, nil
			})
			p := compile(t, `[{"$lookup": {"from": "foreign", "localField": "k", "foreignField": "k", "as": "f"}}]`,
				WithWorkers(workers), WithLogger(logger.Nop()))
			ctx := context.Background()

			it := p.Run(ctx, src, resolver)
			time.Sleep(20 * time.Millisecond)
			if s, f := src.scans.Load(), foreign.scans.Load(); s != 0 || f != 0 {
				t.Fatalf("before Next: source scans=%d foreign scans=%d, want 0", s, f)
			}
			got, err := stream.CollectIter(ctx, it)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || src.scans.Load() != 1 || foreign.scans.Load() != 1 {
				t.Errorf("got %d documents with %d source and %d foreign scans", len(got), src.scans.Load(), foreign.scans.Load())
			}

			unused := p.Run(ctx, src, resolver)
			if err := unused.Close(); err != nil {
				t.Fatal(err)
			}
			if src.scans.Load() != 1 {
				t.Errorf("closing an unread run scanned the source")
			}
		})
	}
}

func TestRun_Observability(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "viewkit", &buf)

	got := runText(t, `[{"$match": {"a": {"$gte": 2}}}, {"$limit": 1}]`, source(t, `[{"a": 1}, {"a": 2}, {"a": 3}]`), nil,
		WithName("numbers"), WithLogger(log), WithMetrics(metrics), WithTracing(true))
	assertDocs(t, got, `[{"a": 2}]`)

	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	if names[observability.SpanPipelineRun] != 1 || names[observability.SpanStage] != 2 {
		t.Errorf("spans = %v", names)
	}

	out := buf.String()
	for _, want := range []string{`"message":"pipeline run completed"`, `"view":"numbers"`, `"message":"stage finished"`, `"kind":"$limit"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	for _, name := range []string{"pipeline.run.total", "pipeline.stage.documents"} {
		if !found[name] {
			t.Errorf("metric %s not recorded (have %v)", name, found)
		}
	}
}

func TestRun_ObservabilityRecordsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "viewkit", &buf)
	p := compile(t, `[{"$match": {"$expr": 1}}]`, WithLogger(log))
	if _, err := Collect(context.Background(), p, source(t, `[{"a": 1}]`), nil); err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(buf.String(), `"error_code":"TYPE_MISMATCH"`) {
		t.Errorf("log output missing error code: %s", buf.String())
	}
}
