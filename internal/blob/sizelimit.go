package blob

import "io"

// limitedWriter refuses any write that would push the total past the
// remaining budget. The offending chunk is rejected whole rather than
// truncated, so the sink never holds a partial chunk.
type limitedWriter struct {
	dst       io.Writer
	remaining int64
	written   int64
}

func newLimitedWriter(dst io.Writer, remaining int64) *limitedWriter {
	return &limitedWriter{dst: dst, remaining: remaining}
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > w.remaining {
		return 0, ErrSizeLimitExceeded
	}
	n, err := w.dst.Write(p)
	w.remaining -= int64(n)
	w.written += int64(n)
	return n, err
}
