package utils

import (
	"context"
	"io"
	"time"
)

// TailReader wraps an io.Reader that may be concurrently appended to
// (a capture segment still being written by the connector). On EOF it
// polls for more data instead of returning, until ctx is cancelled.
type TailReader struct {
	r            io.Reader
	ctx          context.Context
	pollInterval time.Duration
}

func NewTailReader(ctx context.Context, r io.Reader) *TailReader {
	return &TailReader{r: r, ctx: ctx, pollInterval: 100 * time.Millisecond}
}

// Read returns the underlying reader's contents. If the underlying reader
// returns io.EOF, keep on retrying until some data is available or the
// context expires; expiry surfaces as the context's error.
func (t *TailReader) Read(p []byte) (n int, err error) {
	for {
		n, err = t.r.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != io.EOF {
			return 0, err
		}
		select {
		case <-t.ctx.Done():
			return 0, t.ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}
