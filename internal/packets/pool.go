package packets

import "sync"

// pooledBufferSize covers the vast majority of control packets (everything
// but large PUBLISH payloads) without allocating.
const pooledBufferSize = 4096

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, pooledBufferSize)
		return &buf
	},
}

// getBuffer returns a buffer of at least size bytes, pooled when possible.
func getBuffer(size int) *[]byte {
	if size > pooledBufferSize {
		buf := make([]byte, size)
		return &buf
	}
	return bufferPool.Get().(*[]byte)
}

// putBuffer returns a pooled buffer. Oversized buffers are left for GC.
func putBuffer(bufPtr *[]byte) {
	if cap(*bufPtr) != pooledBufferSize {
		return
	}
	bufferPool.Put(bufPtr)
}
