// Package server is the HTTP surface of a flight application.
//
// A Server matches each request against the route tree, renders the
// matched segments on a render.Pool and answers in one of three ways:
//
//   - a full HTML document, for plain browser requests;
//   - a segment stream (text/x-component), when the request accepts one.
//     Segments the client lists in X-Router-State are skipped;
//   - a websocket carrying segment streams, on /_flight/ws.
//
// POST requests run server actions. With X-Mutation: 1 the response is a
// segment stream of the page after the action, and X-Redirect names the
// page when the action redirected.
//
//	srv := server.New(server.DefaultConfig(), rt, loader,
//	    server.WithModules(component.DevModuleMap{}),
//	)
//	srv.HandleAction("posts/like", likePost)
//	err := srv.Run(ctx)
package server
