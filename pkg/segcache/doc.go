// Package segcache tracks which rendered route segments a client already
// holds.
//
// A Tree is keyed by segment keys (see router.Matches.SegmentKeys). Each node
// may carry rendered content. A node with no content is unresolved: the
// client has asked for it but not received it yet, or the fetch failed.
//
// Nodes are only ever added. Reset discards the whole tree, the equivalent
// of a full page reload.
//
// A Tree is not safe for concurrent use. It belongs to one client session
// and is mutated only by that session's navigation reducer.
package segcache
