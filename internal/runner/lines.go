package runner

import (
	"bytes"
	"sync"
)

const (
	// maxLineBytes bounds a single streamed line.
	maxLineBytes = 10 * 1024 * 1024
	// maxCaptureBytes bounds the text kept for the Outcome.
	maxCaptureBytes = 10 * 1024 * 1024
)

// lineWriter captures a stream and hands every completed line to onLine as soon
// as its newline arrives.
type lineWriter struct {
	mu        sync.Mutex
	captured  bytes.Buffer
	partial   []byte
	truncated bool
	onLine    func(string)
}

func newLineWriter(onLine func(string)) *lineWriter {
	return &lineWriter{onLine: onLine}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if room := maxCaptureBytes - w.captured.Len(); room > 0 {
		if len(p) > room {
			w.captured.Write(p[:room])
			w.truncated = true
		} else {
			w.captured.Write(p)
		}
	} else {
		w.truncated = true
	}

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(w.partial[:i])
		w.partial = w.partial[i+1:]
	}
	if len(w.partial) > maxLineBytes {
		w.emit(w.partial)
		w.partial = nil
	}
	return len(p), nil
}

// Flush emits a trailing line that had no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.emit(w.partial)
		w.partial = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	if w.onLine == nil {
		return
	}
	w.onLine(string(bytes.TrimRight(line, "\r")))
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.captured.String()
}
