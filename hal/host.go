package hal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
)

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	t      *hostTime
	serial *hostSerial
}

func newHost(opts Options) (*hostHAL, error) {
	serial, err := openSerial(opts.SerialPort, opts.Baud)
	if err != nil {
		return nil, err
	}
	return &hostHAL{
		logger: &hostLogger{w: colorable.NewColorableStdout()},
		fb:     newHostFramebuffer(consoleWidth, consoleHeight),
		t:      newHostTime(opts.TickPeriodMs),
		serial: serial,
	}, nil
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Serial() Serial   { return h.serial }

func (h *hostHAL) close() error { return h.serial.Close() }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiGray   = "\x1b[90m"
)

var levelColors = []struct{ tag, color string }{
	{"[ERROR]", ansiRed},
	{"[WARN ]", ansiYellow},
	{"[INFO ]", ansiGreen},
	{"[DEBUG]", ansiGray},
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, colorize(s))
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.WriteLineString(string(b))
}

// colorize paints the first level tag in a kernel log line.
func colorize(s string) string {
	for _, lc := range levelColors {
		if i := strings.Index(s, lc.tag); i >= 0 {
			return s[:i] + lc.color + lc.tag + ansiReset + s[i+len(lc.tag):]
		}
	}
	return s
}

// NewLogger returns a logger that writes to w, which must not be nil.
func NewLogger(w io.Writer) Logger {
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return &hostLogger{w: w}
}
