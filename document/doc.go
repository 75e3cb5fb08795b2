// Package document provides the value model consumed and produced by the
// aggregation engine.
//
// A Value is a tagged union of Missing, Null, Bool, Number, String, Array and
// Document. Missing is distinct from Null: it is what a reference to an
// absent field evaluates to. Documents keep their fields in insertion order.
//
// Values are treated as immutable once built. Operations that "modify" a
// document, such as SetPath, return a copy and leave their input untouched,
// so a document can safely be shared between stages and goroutines.
//
// # Usage
//
//	d := document.Doc(
//	    document.F("id", 1),
//	    document.F("tags", []any{"a", "b"}),
//	)
//	v := d.Lookup("tags")      // Array("a", "b")
//	d2 := d.SetPath("meta.seen", document.Bool(true))
package document
