// Package render turns matched routes into a segment stream.
//
// Each matched route has a Component. The Renderer loads the components
// for the routes below the prefix the client already holds, renders them
// root to leaf and writes one Segment per route. Data pushed by components
// goes out as Data frames just before the segment that produced it.
//
// A component's result is an Outcome rather than an error for control
// flow:
//
//	func (p postPage) Render(c *render.Ctx) (render.Outcome, error) {
//	    post, ok := p.store.Find(c.Param("id"))
//	    if !ok {
//	        return render.NotFound(), nil
//	    }
//	    if post.Moved != "" {
//	        return render.Redirect(post.Moved), nil
//	    }
//	    c.Push("post:"+post.ID, post)
//	    return render.Ok(protocol.Element("article", nil, protocol.Text(post.Title))), nil
//	}
//
// A Pool runs renders on dedicated workers and hands the frames back over
// a channel; canceling the job's context closes the channel.
//
// HTMLWriter consumes the same frames and produces an HTML document for
// requests that did not ask for a segment stream.
package render
