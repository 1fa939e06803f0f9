// Package rehydrate moves data produced during a render to the client
// without sending or applying the same value twice.
//
// On the server a Queue lives for one response. Components push records
// while they render, and the renderer drains the queue whenever it is about
// to flush output: into Data frames on a segment stream, or into an inline
// script on an HTML document.
//
// On the client a Store lives for the whole session. Incoming records are
// merged into it; a record whose value equals what the store already holds
// is a no-op.
package rehydrate
