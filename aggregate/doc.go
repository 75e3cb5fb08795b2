// Package aggregate compiles declarative aggregation pipelines and runs them
// over document streams.
//
// A pipeline is an ordered list of stage documents such as
//
//	[
//	  {"$lookup": {"from": "carriers", "localField": "carrier_id", "foreignField": "carrier_id", "as": "carriers"}},
//	  {"$unwind": {"path": "$carriers", "preserveNullAndEmptyArrays": true}},
//	  {"$group": {"_id": "$_id", "carriers": {"$addToSet": "$carriers"}}}
//	]
//
// Compile validates every stage and expression once and returns an immutable
// *Pipeline. Run executes it lazily against a source collection: nothing is
// read until the returned iterator is pulled, and every run re-reads its
// sources. Stages that must see their whole input ($group, $sort, $facet)
// materialize it on the first pull.
//
// Errors abort the run. They carry the index and kind of the stage that
// raised them and, where one was being processed, the _id of the document.
//
// # Null and missing fields
//
// Equality against null follows two rules, depending on the stage:
//
//   - $match with a literal null, as in {"f": null} or {"f": {"$in": [null]}},
//     matches documents where f is null and documents without f.
//   - $lookup with localField/foreignField joins on values only. A null local
//     value matches foreign documents whose field is null; a missing local
//     value matches nothing, and a foreign document without the field is
//     never joined.
//
// To join null and missing together, use a correlated $lookup whose
// sub-pipeline $match compares against null.
//
// Correlated $lookup sub-pipelines and views reading from views nest runs.
// Nesting is bounded by WithMaxDepth, and a view that reaches itself again
// through its own sources fails with CYCLIC_VIEW_REFERENCE.
package aggregate
