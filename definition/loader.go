package definition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/document"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/stream"
	"github.com/kbukum/viewkit/view"
)

// insertBatchSize bounds how many documents are handed to a collection per
// Insert call.
const insertBatchSize = 500

// Parse reads a declarative JSON or YAML definition file:
//
//	collections: [orders, customers]
//	indexes:
//	  - {collection: orders, fields: [customer_id]}
//	views:
//	  - name: open_orders
//	    source: orders
//	    pipeline: [{$match: {status: open}}]
//	documents:
//	  customers: [{_id: 1, name: Ada}]
func Parse(name string, data []byte) (*Definitions, error) {
	root, err := document.Parse(data)
	if err != nil {
		return nil, errors.InvalidDefinition(name, err.Error())
	}
	if root.IsNull() {
		return &Definitions{}, nil
	}
	if !root.IsDocument() {
		return nil, errors.InvalidDefinition(name, "top level must be an object")
	}
	defs := &Definitions{}
	for _, f := range root.DocumentValue().Fields() {
		var err error
		switch f.Name {
		case "collections":
			defs.Collections, err = stringList(f.Value, "collections")
		case "indexes":
			defs.Indexes, err = parseIndexes(f.Value)
		case "views":
			defs.Views, err = parseViews(f.Value)
		case "documents":
			defs.Data, err = parseData(f.Value)
		default:
			err = fmt.Errorf("unknown section %q", f.Name)
		}
		if err != nil {
			return nil, errors.InvalidDefinition(name, err.Error())
		}
	}
	return defs, nil
}

func stringList(v document.Value, what string) ([]string, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("%s must be a list of names", what)
	}
	out := make([]string, 0, len(v.ArrayValue()))
	for _, e := range v.ArrayValue() {
		if e.Kind() != document.KindString || e.StringValue() == "" {
			return nil, fmt.Errorf("%s must be a list of names", what)
		}
		out = append(out, e.StringValue())
	}
	return out, nil
}

func stringField(d *document.Document, field, what string) (string, error) {
	v := d.Get(field)
	if v.Kind() != document.KindString || v.StringValue() == "" {
		return "", fmt.Errorf("%s requires a non-empty %q", what, field)
	}
	return v.StringValue(), nil
}

func parseIndexes(v document.Value) ([]IndexDef, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("indexes must be a list")
	}
	var out []IndexDef
	for i, e := range v.ArrayValue() {
		if !e.IsDocument() {
			return nil, fmt.Errorf("index %d must be an object", i)
		}
		d := e.DocumentValue()
		coll, err := stringField(d, "collection", fmt.Sprintf("index %d", i))
		if err != nil {
			return nil, err
		}
		var fields []string
		switch keys := d.Get("fields"); {
		case keys.IsArray():
			fields, err = stringList(keys, fmt.Sprintf("index %d fields", i))
		case keys.IsDocument():
			fields = keys.DocumentValue().Keys()
		}
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("index %d on %q has no fields", i, coll)
		}
		out = append(out, IndexDef{Collection: coll, Fields: fields})
	}
	return out, nil
}

func parseViews(v document.Value) ([]ViewDef, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("views must be a list")
	}
	var out []ViewDef
	for i, e := range v.ArrayValue() {
		if !e.IsDocument() {
			return nil, fmt.Errorf("view %d must be an object", i)
		}
		d := e.DocumentValue()
		name, err := stringField(d, "name", fmt.Sprintf("view %d", i))
		if err != nil {
			return nil, err
		}
		source, err := stringField(d, "source", fmt.Sprintf("view %q", name))
		if err != nil {
			return nil, err
		}
		pipeline := d.Get("pipeline")
		switch {
		case pipeline.IsMissing() || pipeline.IsNull():
			pipeline = document.Array()
		case !pipeline.IsArray():
			return nil, fmt.Errorf("view %q: pipeline must be a list", name)
		}
		out = append(out, ViewDef{Name: name, Source: source, Pipeline: pipeline.ArrayValue()})
	}
	return out, nil
}

func parseData(v document.Value) ([]DataDef, error) {
	if !v.IsDocument() {
		return nil, fmt.Errorf("documents must map collection names to lists")
	}
	var out []DataDef
	for _, f := range v.DocumentValue().Fields() {
		docs, err := documentsOf(f.Value)
		if err != nil {
			return nil, fmt.Errorf("documents for %q: %w", f.Name, err)
		}
		out = append(out, DataDef{Collection: f.Name, Documents: docs})
	}
	return out, nil
}

// LoadFile reads one definition file, choosing the format by extension:
// .js for shell scripts, .json, .yaml and .yml for declarative files.
func LoadFile(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InvalidDefinition(path, "read failed").WithCause(err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js":
		return ParseScript(path, data)
	case ".json", ".yaml", ".yml":
		return Parse(path, data)
	}
	return nil, errors.InvalidDefinition(path, "unsupported file extension")
}

// LoadDataFile reads a JSON or YAML array of documents. The collection is
// named after the file, without its extension.
func LoadDataFile(path string) (DataDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DataDef{}, errors.InvalidDefinition(path, "read failed").WithCause(err)
	}
	docs, err := document.ParseDocuments(data)
	if err != nil {
		return DataDef{}, errors.InvalidDefinition(path, err.Error())
	}
	base := filepath.Base(path)
	return DataDef{Collection: strings.TrimSuffix(base, filepath.Ext(base)), Documents: docs}, nil
}

// Load reads every definition file matched by patterns, then every data
// file matched by dataPatterns, in lexical order per pattern. A pattern
// naming a directory matches the files directly inside it.
func Load(patterns, dataPatterns []string) (*Definitions, error) {
	defs := &Definitions{}
	paths, err := expand(patterns, ".js", ".json", ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		d, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		defs.Merge(d)
	}
	dataPaths, err := expand(dataPatterns, ".json", ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	for _, p := range dataPaths {
		d, err := LoadDataFile(p)
		if err != nil {
			return nil, err
		}
		defs.Data = append(defs.Data, d)
	}
	return defs, nil
}

func expand(patterns []string, exts ...string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			pattern = filepath.Join(pattern, "*")
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.InvalidDefinition(pattern, "bad pattern").WithCause(err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			ext := strings.ToLower(filepath.Ext(m))
			for _, e := range exts {
				if ext == e {
					out = append(out, m)
					break
				}
			}
		}
	}
	return out, nil
}

// Apply registers defs: collections are created, documents inserted in
// batches, indexes declared, then views defined in declaration order.
func Apply(ctx context.Context, defs *Definitions, catalog *collection.Catalog, registry *view.Registry) error {
	for _, name := range defs.Collections {
		if _, err := catalog.Ensure(name); err != nil {
			return err
		}
	}
	for _, data := range defs.Data {
		batches := stream.Batch(stream.FromSlice(data.Documents), insertBatchSize)
		err := stream.ForEach(ctx, batches, func(ctx context.Context, docs []*document.Document) error {
			return catalog.Insert(ctx, data.Collection, docs...)
		})
		if err != nil {
			return err
		}
		if len(data.Documents) == 0 {
			if _, err := catalog.Ensure(data.Collection); err != nil {
				return err
			}
		}
	}
	for _, idx := range defs.Indexes {
		for _, f := range idx.Fields {
			if err := catalog.CreateIndex(ctx, idx.Collection, f); err != nil {
				return err
			}
		}
	}
	if registry == nil {
		return nil
	}
	for _, v := range defs.Views {
		if _, err := registry.DefineView(v.Name, v.Source, v.Pipeline); err != nil {
			return err
		}
	}
	return nil
}
