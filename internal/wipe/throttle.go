package wipe

import (
	"io"
	"os"
	"time"
)

// throttledWriter caps write speed onto the target. Speed is a resource
// parameter only; correctness never depends on it.
type throttledWriter struct {
	file         *os.File
	maxSpeedMBps float64
	lastWrite    time.Time
	closed       bool
}

func newThrottledWriter(file *os.File, maxSpeedMBps float64) *throttledWriter {
	return &throttledWriter{
		file:         file,
		maxSpeedMBps: maxSpeedMBps,
		lastWrite:    time.Now(),
	}
}

func (tw *throttledWriter) Write(data []byte) (int, error) {
	if tw.closed {
		return 0, io.ErrClosedPipe
	}
	if len(data) == 0 {
		return 0, nil
	}

	if tw.maxSpeedMBps > 0 {
		bytesPerSec := tw.maxSpeedMBps * 1024 * 1024
		expected := time.Duration(float64(len(data)) / bytesPerSec * float64(time.Second))
		if actual := time.Since(tw.lastWrite); actual < expected {
			time.Sleep(expected - actual)
		}
	}

	n, err := tw.file.Write(data)
	tw.lastWrite = time.Now()
	return n, err
}

// Sync flushes written data to the underlying medium. A pass does not count
// as completed until this succeeds.
func (tw *throttledWriter) Sync() error {
	if tw.closed {
		return io.ErrClosedPipe
	}
	return tw.file.Sync()
}

func (tw *throttledWriter) Close() error {
	if tw.closed {
		return nil
	}
	tw.closed = true
	return tw.file.Close()
}
