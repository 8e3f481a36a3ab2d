//go:build !cgo

package hal

import "errors"

// ErrNoWindow is returned by RunWindow in builds without cgo.
var ErrNoWindow = errors.New("hal: window mode needs cgo; use -headless")

func RunWindow(func(HAL) func() error, Options) error {
	return ErrNoWindow
}
