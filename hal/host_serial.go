package hal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.bug.st/serial"
)

type hostSerial struct {
	mu   sync.Mutex
	r    io.Reader
	w    io.Writer
	port serial.Port
}

// openSerial opens a host serial device, or falls back to stdin/stdout.
func openSerial(path string, baud int) (*hostSerial, error) {
	if path == "" {
		return &hostSerial{r: os.Stdin, w: os.Stdout}, nil
	}
	if baud <= 0 {
		baud = 115200
	}
	p, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return &hostSerial{r: p, w: p, port: p}, nil
}

func (s *hostSerial) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, ErrNotImplemented
	}
	return s.r.Read(p)
}

func (s *hostSerial) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *hostSerial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
