package cli

import (
	"bytes"
	"io"
	"sync"
)

// deferredWriter buffers writes until Release, then forwards them.
type deferredWriter struct {
	mu       sync.Mutex
	target   io.Writer
	buffer   bytes.Buffer
	released bool
}

func newDeferredWriter(target io.Writer) *deferredWriter {
	return &deferredWriter{target: target}
}

func (w *deferredWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return w.target.Write(p)
	}
	return w.buffer.Write(p)
}

// Release flushes the buffered output. Later writes go straight through.
func (w *deferredWriter) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return
	}
	w.released = true
	w.buffer.WriteTo(w.target) // nolint: errcheck
}
