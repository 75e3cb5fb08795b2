// Package redisstore stores collections in redis.
//
// Key layout under the configured prefix:
//
//	<prefix>:collections                   set of collection names
//	<prefix>:c:<name>:docs                 list of JSON documents in insertion order
//	<prefix>:c:<name>:indexes              set of indexed fields
//	<prefix>:c:<name>:ix:<field>:<hash>    sorted set of positions, scored by position
//
// Positions are 1-based list indexes, so a scan can fix its upper bound
// with LLEN and page with LRANGE.
package redisstore
