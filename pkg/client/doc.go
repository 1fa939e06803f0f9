// Package client is the navigation side of the segment transport.
//
// A Session owns one segment cache tree and one rehydration store for the
// lifetime of a client. Navigate matches the target locally, serves it from
// the cache when every segment is resolved, and otherwise fetches only the
// subtree below the deepest resolved segment:
//
//	sess := client.NewSession(rt, client.NewHTTPTransport("http://localhost:3000"))
//	nav, err := sess.Navigate(ctx, "/posts/42")
//
// Segments are written to the cache only after the stream has ended, so a
// failed or canceled fetch leaves its target unresolved and the next
// navigation to it fetches again.
package client
