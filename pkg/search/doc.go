// Package search implements substring search over an in-memory record
// collection.
//
// An Indexer maps normalized keys to the records they were derived from.
// For every record the keys are the lowercase value of each text field, each
// word of at least two characters, and each configured composite such as
// "honda civic". A query matches a record when one of its keys contains the
// query. Without an index the same keys are scanned linearly, so both paths
// return the same records.
//
// Queries consult an optional cache.Cache of record IDs before the index, and
// write the full match list back. Results are always resolved against the
// collection passed to the call and keep its order.
//
//	ix, _ := search.NewIndexer[search.Doc](schema, queryCache)
//	ix.BuildIndex(ctx, docs)
//	res := ix.Search(ctx, "civ", docs, search.WithMaxResults(10))
//
// SearchDebounced, AdvancedSearch and Suggestions build on the same keys.
package search
