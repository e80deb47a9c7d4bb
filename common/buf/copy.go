package buf

import (
	"github.com/netbot-proxy/netbot/common/signal"
)

type dataHandler func(MultiBuffer)

type copyHandler struct {
	onData []dataHandler
}

// CopyOption configures a Copy call.
type CopyOption func(*copyHandler)

// UpdateActivity is a CopyOption that touches timer on every chunk copied,
// the activity signal transport/pipeline uses to drive idle-timeout closes.
func UpdateActivity(timer signal.ActivityUpdater) CopyOption {
	return func(h *copyHandler) {
		h.onData = append(h.onData, func(MultiBuffer) {
			timer.Update()
		})
	}
}

// SizeCounter accumulates the total bytes a Copy call has moved.
type SizeCounter struct {
	Size int64
}

// CountSize is a CopyOption that adds every chunk's length to sc.
func CountSize(sc *SizeCounter) CopyOption {
	return func(h *copyHandler) {
		h.onData = append(h.onData, func(mb MultiBuffer) {
			sc.Size += int64(mb.Len())
		})
	}
}

type readError struct{ error }

func (e readError) Unwrap() error { return e.error }

// IsReadError reports whether err originated from Copy's Reader side.
func IsReadError(err error) bool {
	_, ok := err.(readError)
	return ok
}

type writeError struct{ error }

func (e writeError) Unwrap() error { return e.error }

// IsWriteError reports whether err originated from Copy's Writer side.
func IsWriteError(err error) bool {
	_, ok := err.(writeError)
	return ok
}

// Copy moves MultiBuffers from reader to writer until reader returns an
// error (io.EOF included), applying every CopyOption to each chunk moved.
// A read error is wrapped in readError; a write error in writeError, so
// callers can tell the two apart.
func Copy(reader Reader, writer Writer, options ...CopyOption) error {
	var handler copyHandler
	for _, opt := range options {
		opt(&handler)
	}

	for {
		mb, err := reader.ReadMultiBuffer()
		if err != nil {
			return readError{err}
		}
		if mb.IsEmpty() {
			continue
		}
		for _, h := range handler.onData {
			h(mb)
		}
		if err := writer.WriteMultiBuffer(mb); err != nil {
			return writeError{err}
		}
	}
}
