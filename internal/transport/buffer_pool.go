package transport

import (
	"sync"
)

// MaxPacketSize is the largest mDNS datagram a receive buffer needs to hold.
// RFC 6762 §17 allows messages larger than the classic 512-byte DNS limit
// when sent over jumbo-frame-capable links, up to 9000 bytes.
const MaxPacketSize = 9000

// bufferPool recycles MaxPacketSize receive buffers so UDPv4Transport.Receive
// doesn't allocate on every incoming datagram.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, MaxPacketSize)
		return &buf
	},
}

// GetBuffer returns a pointer to a MaxPacketSize-byte buffer from the pool.
// The caller must return it via PutBuffer, typically with defer.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer zeroes bufPtr's contents and returns it to the pool. The buffer
// must not be used again after this call. Zeroing avoids leaking one
// receiver's packet bytes into a buffer reused for an unrelated interface.
func PutBuffer(bufPtr *[]byte) {
	buf := *bufPtr
	for i := range buf {
		buf[i] = 0
	}

	bufferPool.Put(bufPtr)
}
