// Package protocol implements the segment stream: the wire format that
// carries rendered route segments and side-channel data from server to
// client.
//
// # Wire Format
//
// A stream is a sequence of frames, each with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// A message larger than MaxPayloadSize is split over consecutive frames of
// the same type; all but the last carry FlagContinued.
//
// # Messages
//
//   - Head (0x01): always first; version, target pathname, skipped keys
//   - Segment (0x02): one rendered route level, root to leaf
//   - Data (0x03): a rehydration record, key and JSON value
//   - Module (0x04): chunks the client needs for a client component
//   - Redirect (0x05), NotFound (0x06): render outcomes other than a tree
//   - Error (0x07): render or action failure
//   - End (0x08): always last
//
// Segments form the segment channel and must be applied in arrival order.
// Data and Module frames form the auxiliary channel and may appear anywhere
// between Head and End.
//
// # Encoding
//
// Integers are varints, strings and byte fields are varint length
// prefixed, and maps are written in key order.
//
// # Errors
//
// Decoding never degrades. A truncated frame, an unknown type, a broken
// continuation or a missing End yields a *StreamError and the stream is
// dead:
//
//	r := protocol.NewStreamReader(resp.Body)
//	for {
//	    m, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err // *StreamError
//	    }
//	    handle(m)
//	}
//
// # HTTP
//
// Requests opt into a stream with Accept: text/x-component. X-Navigate
// carries the logical target, X-Router-State the JSON list of segment keys
// the client already holds, X-Mutation: 1 and X-Action mark action calls.
// An action that redirects answers with X-Redirect.
package protocol
