// Package ioutil holds small io.Reader/io.Writer helpers used by the
// preparer's mirror copies.
package ioutil

import (
	"context"
	"io"
)

// ContextReader wraps an [io.Reader], failing a Read with [context.Canceled]
// once ctx is done instead of letting a large copy run to completion after
// an interrupt has been requested.
type ContextReader struct {
	Ctx    context.Context //nolint:containedctx
	Reader io.Reader
}

// Read implements [io.Reader].
func (cr *ContextReader) Read(p []byte) (int, error) {
	select {
	case <-cr.Ctx.Done():
		return 0, context.Canceled
	default:
		return cr.Reader.Read(p) //nolint:wrapcheck
	}
}
