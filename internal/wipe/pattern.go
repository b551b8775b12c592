package wipe

import (
	"crypto/rand"
	"sync"

	cerr "github.com/cockroachdb/errors"
)

// FillPattern заполняет буфер паттерном прохода. Random fills always come
// from crypto/rand: a non-cryptographic generator would leave recoverable
// structure on the medium.
func FillPattern(buf []byte, kind PatternKind) error {
	switch kind {
	case PatternZeros:
		for i := range buf {
			buf[i] = 0x00
		}
		return nil
	case PatternOnes:
		for i := range buf {
			buf[i] = 0xFF
		}
		return nil
	case PatternRandom:
		if _, err := rand.Read(buf); err != nil {
			return cerr.Wrap(err, "random pattern generation")
		}
		return nil
	default:
		return cerr.Newf("unknown pattern kind: %q", kind)
	}
}

// fillByte returns the constant fill value for zeros/ones patterns.
// Random patterns have no single fill byte.
func fillByte(kind PatternKind) (byte, bool) {
	switch kind {
	case PatternZeros:
		return 0x00, true
	case PatternOnes:
		return 0xFF, true
	default:
		return 0, false
	}
}

// bufferPool recycles chunk buffers of a single size. Buffers are zeroed on
// return so pattern bytes never linger in reusable memory.
type bufferPool struct {
	size int
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	return &bufferPool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

func (bp *bufferPool) Get() []byte {
	return bp.pool.Get().([]byte)
}

func (bp *bufferPool) Put(buf []byte) {
	if cap(buf) < bp.size {
		return
	}
	buf = buf[:bp.size]
	for i := range buf {
		buf[i] = 0
	}
	bp.pool.Put(buf)
}
