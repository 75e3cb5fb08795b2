// Package store provides persistent collection backends.
//
// A Backend hands out named collections that implement collection.Writable
// and collection.Indexed, so it can serve as a collection.Catalog factory:
//
//	b, err := store.Open(cfg, log)
//	catalog := collection.NewCatalog(collection.WithFactory(b.Collection))
//
// Backends register themselves by driver name. Import the driver package
// for its side effect before calling Open:
//
//	import _ "github.com/kbukum/viewkit/store/sqlstore"
//
// The memory driver is always available.
package store
