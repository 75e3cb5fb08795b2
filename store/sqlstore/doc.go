// Package sqlstore stores collections in a sqlite database through gorm.
//
// Documents are kept as JSON bodies in one table keyed by collection and
// insertion sequence. Secondary indexes are materialized as rows of
// (collection, field, key hash, sequence).
package sqlstore
