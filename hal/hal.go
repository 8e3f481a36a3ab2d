package hal

import (
	"errors"
	"io"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides the board's timer tick stream. Each value is one timer
// interrupt for the kernel.
type Time interface {
	Ticks() <-chan uint64
}

// Serial is the board's UART line.
type Serial interface {
	io.ReadWriter
}

// HAL is the only contact point between the board and the outside world.
type HAL interface {
	Logger() Logger
	Display() Display
	Time() Time
	Serial() Serial
}

// Options selects host devices.
type Options struct {
	// SerialPort is a host serial device to mirror the UART onto. Empty
	// means stdin/stdout.
	SerialPort string
	Baud       int
	// TickPeriodMs is the host duration of one kernel tick.
	TickPeriodMs int
}
