package protocol

import "errors"

// MaxNodeDepth limits the nesting depth of a decoded node tree.
const MaxNodeDepth = 256

// MaxMessageSize caps a message reassembled from continued frames.
const MaxMessageSize = DefaultMaxAllocation

var ErrMaxDepthExceeded = errors.New("protocol: maximum nesting depth exceeded")

func checkDepth(current, max int) error {
	if current > max {
		return ErrMaxDepthExceeded
	}
	return nil
}
