// Package definition loads collection, index, view and seed-data
// declarations and applies them to a catalog and view registry.
//
// Two formats are accepted. Shell scripts (.js) use the familiar
// db.createView / db.<coll>.createIndex / insertMany statements with
// relaxed JavaScript literals. Declarative files (.json, .yaml) carry the
// same information as collections, indexes, views and documents sections.
package definition
