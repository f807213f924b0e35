package dataset

import (
	"context"

	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
)

// progressStep is how many bytes pass between two progress lines.
const progressStep = 8 << 20

// progressWriter logs download progress at debug level.
type progressWriter struct {
	ctx     context.Context //nolint:containedctx // Only used to reach the request logger.
	total   int64
	written int64
	next    int64
}

func newProgressWriter(ctx context.Context, total int64) *progressWriter {
	return &progressWriter{
		ctx:   ctx,
		total: total,
		next:  progressStep,
	}
}

// Write counts p and never fails.
func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))

	if w.written >= w.next {
		w.next = w.written + progressStep

		if w.total > 0 {
			logger.Debugf(w.ctx, "Downloaded %d of %d bytes (%d%%)", w.written, w.total, w.written*100/w.total)
		} else {
			logger.Debugf(w.ctx, "Downloaded %d bytes", w.written)
		}
	}

	return len(p), nil
}
