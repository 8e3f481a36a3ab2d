package hal

import "sync"

const (
	consoleWidth  = 320
	consoleHeight = 320
)

// hostFramebuffer is the console framebuffer. Renderers hold it through
// Lock/Unlock; the window copies it out only when gen has moved.
type hostFramebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	buf    []byte
	gen    uint64
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	return &hostFramebuffer{
		width:  width,
		height: height,
		buf:    make([]byte, width*height*2),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.width * 2 }
func (f *hostFramebuffer) Buffer() []byte      { return f.buf }
func (f *hostFramebuffer) Present() error      { return nil }

func (f *hostFramebuffer) Lock() { f.mu.Lock() }

// Unlock ends a render pass. Every pass counts as a new frame.
func (f *hostFramebuffer) Unlock() {
	f.gen++
	f.mu.Unlock()
}

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	f.Lock()
	defer f.Unlock()

	p := rgb565(r, g, b)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i] = byte(p)
		f.buf[i+1] = byte(p >> 8)
	}
}

// copyRGBA expands the frame into dst as opaque RGBA if it changed since
// generation seen. It returns the current generation.
func (f *hostFramebuffer) copyRGBA(dst []byte, seen uint64) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen == seen {
		return seen, false
	}
	n := len(f.buf) / 2
	if len(dst)/4 < n {
		n = len(dst) / 4
	}
	for i := 0; i < n; i++ {
		r, g, b := rgb888(uint16(f.buf[2*i]) | uint16(f.buf[2*i+1])<<8)
		dst[4*i+0] = r
		dst[4*i+1] = g
		dst[4*i+2] = b
		dst[4*i+3] = 0xFF
	}
	return f.gen, true
}

func rgb565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

func rgb888(p uint16) (r, g, b uint8) {
	r = uint8(uint32(p>>11&0x1F) * 255 / 31)
	g = uint8(uint32(p>>5&0x3F) * 255 / 63)
	b = uint8(uint32(p&0x1F) * 255 / 31)
	return r, g, b
}
