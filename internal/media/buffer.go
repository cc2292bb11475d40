package media

import (
	"sync"
)

// FourCC identifies a pixel format using the packed four character
// code convention.
type FourCC uint32

// String renders the four character code, e.g. "BGRA".
func (f FourCC) String() string {
	return string([]byte{byte(f >> 24), byte(f >> 16), byte(f >> 8), byte(f)})
}

func fourCC(s string) FourCC {
	return FourCC(uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3]))
}

var (
	// FormatBGRA is 8-bit interleaved blue, green, red, alpha.
	FormatBGRA = fourCC("BGRA")
	// FormatDepthFloat16 is a half precision disparity/depth map.
	FormatDepthFloat16 = fourCC("hdep")
	// FormatDepthFloat32 is a full precision disparity/depth map.
	FormatDepthFloat32 = fourCC("fdep")
)

// VideoBuffer is one owned video frame. Data layout is row major with
// BytesPerRow stride.
type VideoBuffer struct {
	Data        []byte
	Width       int
	Height      int
	BytesPerRow int
	Format      FourCC

	pool *BufferPool
}

// Release returns the underlying storage to its pool. Safe to call
// more than once; only the first call has an effect.
func (b *VideoBuffer) Release() {
	if b.pool != nil {
		b.pool.put(b.Data)
		b.pool = nil
		b.Data = nil
	}
}

// DepthBuffer is one owned depth map plus the calibration payload the
// device attached to it, if any. Calibration stays opaque here; the
// calib package decodes it.
type DepthBuffer struct {
	Data        []byte
	Width       int
	Height      int
	BytesPerRow int
	Format      FourCC
	Filtered    bool
	Calibration []byte

	pool *BufferPool
}

// Release returns the underlying storage to its pool. Safe to call
// more than once; only the first call has an effect.
func (b *DepthBuffer) Release() {
	if b.pool != nil {
		b.pool.put(b.Data)
		b.pool = nil
		b.Data = nil
	}
}

// BufferPool bounds how many buffers a source may have in flight and
// recycles their storage. Acquire fails once every slot is handed
// out; sources surface that as an out_of_buffers drop rather than
// allocating without bound.
type BufferPool struct {
	mu    sync.Mutex
	free  [][]byte
	slots int
}

// NewBufferPool returns a pool with the given number of slots. A zero
// or negative count falls back to a single slot.
func NewBufferPool(slots int) *BufferPool {
	if slots < 1 {
		slots = 1
	}
	return &BufferPool{slots: slots}
}

// AcquireVideo returns a pooled video buffer of the given geometry,
// or nil when the pool is exhausted.
func (p *BufferPool) AcquireVideo(width, height, bytesPerRow int, format FourCC) *VideoBuffer {
	data := p.get(height * bytesPerRow)
	if data == nil {
		return nil
	}
	return &VideoBuffer{
		Data:        data,
		Width:       width,
		Height:      height,
		BytesPerRow: bytesPerRow,
		Format:      format,
		pool:        p,
	}
}

// AcquireDepth returns a pooled depth buffer of the given geometry,
// or nil when the pool is exhausted.
func (p *BufferPool) AcquireDepth(width, height, bytesPerRow int, format FourCC) *DepthBuffer {
	data := p.get(height * bytesPerRow)
	if data == nil {
		return nil
	}
	return &DepthBuffer{
		Data:        data,
		Width:       width,
		Height:      height,
		BytesPerRow: bytesPerRow,
		Format:      format,
		pool:        p,
	}
}

// Available reports how many slots remain.
func (p *BufferPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots
}

func (p *BufferPool) get(size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots == 0 {
		return nil
	}
	p.slots--
	for i := len(p.free) - 1; i >= 0; i-- {
		if cap(p.free[i]) >= size {
			buf := p.free[i][:size]
			p.free = append(p.free[:i], p.free[i+1:]...)
			return buf
		}
	}
	return make([]byte, size)
}

func (p *BufferPool) put(data []byte) {
	if data == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots++
	p.free = append(p.free, data)
}
