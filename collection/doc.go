// Package collection defines the read interface the engine consumes and an
// in-memory implementation with secondary equality indexes.
//
// A Collection is a named sequence of documents readable by full scan.
// Collections that also implement Indexed answer equality lookups on
// indexed fields without a scan. A Resolver maps names to collections and
// is how pipelines reach foreign collections and other views.
package collection
