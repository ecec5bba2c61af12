// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"context"
	"io"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(conn)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c:
//
//	t.Cleanup(iox.CloseFunc(sock))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CloseOnDone closes c once ctx ends, unblocking any read or accept in
// progress on it. The returned stop detaches c; it reports false when the
// close already ran.
//
//	stop := iox.CloseOnDone(ctx, ln)
//	defer stop()
func CloseOnDone(ctx context.Context, c io.Closer) (stop func() bool) {
	return context.AfterFunc(ctx, func() { _ = c.Close() })
}
