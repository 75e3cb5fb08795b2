// Package view implements named, read-only views: pipelines bound to a
// source collection and re-executed on every read.
//
// A Registry resolves names to views first and to the raw collections of
// its base resolver otherwise, so a view may read from another view or
// join against one with $lookup. Reading a view records it in the run
// frame carried by the context; a view reached again through its own
// sources fails with CYCLIC_VIEW_REFERENCE instead of recursing.
package view
