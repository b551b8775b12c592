package wipe

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

const defaultChunkSize = 4 * 1024 * 1024 // 4MB

// Executor streams pass patterns onto a target's extent in fixed-size
// chunks. Chunk size tunes memory and I/O granularity, not correctness.
type Executor struct {
	chunkSize    int
	maxSpeedMBps float64
	syncInterval int64
	buffers      *bufferPool
	log          *zap.Logger
}

// ExecutorConfig carries the resource parameters for the overwrite loop.
type ExecutorConfig struct {
	ChunkSize    int64
	MaxSpeedMBps float64
	SyncInterval int64
}

func NewExecutor(cfg ExecutorConfig, log *zap.Logger) *Executor {
	chunk := int(cfg.ChunkSize)
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	return &Executor{
		chunkSize:    chunk,
		maxSpeedMBps: cfg.MaxSpeedMBps,
		syncInterval: cfg.SyncInterval,
		buffers:      newBufferPool(chunk),
		log:          log,
	}
}

// Execute runs one pass over the full extent of the target. Cancellation is
// checked before every chunk write; an already-issued chunk is never rolled
// back. The pass only counts as completed after a confirmed sync.
func (e *Executor) Execute(ctx context.Context, target WipeTarget, spec PassSpec) PassResult {
	res := PassResult{
		Pattern:   spec.Pattern,
		Index:     spec.Index,
		StartedAt: time.Now(),
		Outcome:   PassCompleted,
	}

	if target.Length == 0 {
		// Zero-length extents are trivially overwritten, but an ended
		// invocation must not report progress for them either.
		if err := ctx.Err(); err != nil {
			res.Outcome = PassAborted
			res.Detail = cancelDetail(err)
		}
		res.EndedAt = time.Now()
		return res
	}

	file, err := os.OpenFile(target.Path, os.O_WRONLY, 0)
	if err != nil {
		return e.ioError(res, fmt.Sprintf("open: %v", err))
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			e.log.Warn("error closing target", zap.String("path", target.Path), zap.Error(closeErr))
		}
	}()

	writer := newThrottledWriter(file, e.maxSpeedMBps)

	buf := e.buffers.Get()
	defer e.buffers.Put(buf)

	constant := spec.Pattern != PatternRandom
	if constant {
		if err := FillPattern(buf, spec.Pattern); err != nil {
			return e.ioError(res, fmt.Sprintf("pattern generation: %v", err))
		}
	}

	var written, lastSync int64
	for written < target.Length {
		select {
		case <-ctx.Done():
			res.Outcome = PassAborted
			res.Detail = cancelDetail(ctx.Err())
			res.BytesWritten = written
			res.EndedAt = time.Now()
			return res
		default:
		}

		remaining := target.Length - written
		toWrite := int64(e.chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}

		chunk := buf[:toWrite]
		if !constant {
			if err := FillPattern(chunk, PatternRandom); err != nil {
				res.BytesWritten = written
				return e.ioError(res, fmt.Sprintf("pattern generation: %v", err))
			}
		}

		off := 0
		for off < len(chunk) {
			n, err := writer.Write(chunk[off:])
			if n > 0 {
				off += n
				written += int64(n)
			}
			if err != nil {
				res.BytesWritten = written
				return e.ioError(res, fmt.Sprintf("write at offset %d: %v", written, err))
			}
			if n == 0 {
				res.BytesWritten = written
				return e.ioError(res, fmt.Sprintf("write returned 0 bytes at offset %d", written))
			}
		}

		if e.syncInterval > 0 && written-lastSync >= e.syncInterval {
			if err := writer.Sync(); err != nil {
				res.BytesWritten = written
				return e.ioError(res, fmt.Sprintf("sync at offset %d: %v", written, err))
			}
			lastSync = written
		}
	}

	res.BytesWritten = written

	// The method's guarantee only holds once the bytes hit the medium.
	if err := writer.Sync(); err != nil {
		return e.ioError(res, fmt.Sprintf("final sync: %v", err))
	}

	res.EndedAt = time.Now()
	e.log.Debug("pass completed",
		zap.String("path", target.Path),
		zap.String("pattern", string(spec.Pattern)),
		zap.Int("pass", spec.Index),
		zap.Int64("bytes", written))
	return res
}

// cancelDetail names the way a context ended a pass or unit early.
func cancelDetail(err error) string {
	if err == context.DeadlineExceeded {
		return "timeout"
	}
	return "cancelled"
}

func (e *Executor) ioError(res PassResult, detail string) PassResult {
	res.Outcome = PassIOError
	res.Detail = detail
	res.EndedAt = time.Now()
	return res
}
