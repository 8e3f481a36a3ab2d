// Package console is the board's UART console. Bytes written to it are
// rendered on the framebuffer through a VT100 terminal, mirrored to the
// serial line and optionally appended to a capture file.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"aegis/hal"

	"github.com/gofrs/flock"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

var ErrCaptureBusy = errors.New("console: capture file is locked by another process")

// Options configures the console sinks. Zero values disable them.
type Options struct {
	Serial io.Writer
	// CapturePath names a file that receives a copy of all output. It is
	// locked for the lifetime of the console.
	CapturePath string
}

// Console is an io.Writer safe for concurrent use.
type Console struct {
	mu sync.Mutex

	fb   hal.Framebuffer
	term *tinyterm.Terminal

	serial  io.Writer
	capture *os.File
	lock    *flock.Flock
}

// New creates a console on disp, which may be nil for a headless board.
func New(disp hal.Display, opts Options) (*Console, error) {
	c := &Console{serial: opts.Serial}
	if disp != nil {
		c.fb = disp.Framebuffer()
	}
	if c.fb != nil {
		c.term = tinyterm.NewTerminal(&fbDisplay{fb: c.fb})
		c.reset()
	}
	if opts.CapturePath != "" {
		if err := c.openCapture(opts.CapturePath); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Console) openCapture(path string) error {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("console: lock %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCaptureBusy, path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("console: %w", err)
	}
	c.capture = f
	c.lock = lock
	return nil
}

func (c *Console) reset() {
	c.withFrame(func() {
		c.term.Configure(&tinyterm.Config{
			Font:              &proggy.TinySZ8pt7b,
			FontHeight:        10,
			FontOffset:        6,
			UseSoftwareScroll: true,
		})
	})
	c.fb.ClearRGB(0, 0, 0)
	_ = c.fb.Present()
}

// withFrame runs fn while the window's draw loop is kept off the frame.
func (c *Console) withFrame(fn func()) {
	if l, ok := c.fb.(sync.Locker); ok {
		l.Lock()
		defer l.Unlock()
	}
	fn()
}

// Write renders p and copies it to the serial line and capture file. Sink
// errors are reported after every sink has seen p.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.term != nil {
		c.withFrame(func() { _, _ = c.term.Write(p) })
		_ = c.fb.Present()
	}
	var errs []error
	if c.serial != nil {
		if _, err := c.serial.Write(p); err != nil {
			errs = append(errs, fmt.Errorf("serial: %w", err))
		}
	}
	if c.capture != nil {
		if _, err := c.capture.Write(p); err != nil {
			errs = append(errs, fmt.Errorf("capture: %w", err))
		}
	}
	return len(p), errors.Join(errs...)
}

// Clear blanks the screen and homes the cursor.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.term != nil {
		c.reset()
	}
}

// Close releases the capture file and its lock.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	if uerr := c.lock.Unlock(); err == nil {
		err = uerr
	}
	c.capture, c.lock = nil, nil
	return err
}
