// Package boltstore stores collections in a bbolt file.
//
// Each collection is a bucket under the root "collections" bucket holding
// three sub-buckets: docs (big-endian sequence -> JSON document), indexes
// (field -> empty) and entries (one bucket per indexed field whose keys are
// key hash + sequence, so a prefix seek lists matches in insertion order).
package boltstore
