//go:build cgo

package hal

import (
	"fmt"
	"time"

	"aegis/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow opens a desktop window showing the console framebuffer at 2x.
// It blocks until the window closes or step returns an error.
func RunWindow(newApp func(HAL) func() error, opts Options) error {
	h, err := newHost(opts)
	if err != nil {
		return err
	}
	defer h.close()

	w := &window{h: h, step: newApp(h), title: buildinfo.Banner()}
	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(w)
}

type window struct {
	h     *hostHAL
	step  func() error
	title string

	pix   []byte
	img   *ebiten.Image
	seen  uint64
	drops uint64
}

func (w *window) Update() error {
	w.h.t.advance(time.Now())
	if d := w.h.t.Dropped(); d != w.drops {
		w.drops = d
		ebiten.SetWindowTitle(fmt.Sprintf("%s [%d ticks dropped]", w.title, d))
	}
	if w.step == nil {
		return nil
	}
	return w.step()
}

func (w *window) Draw(screen *ebiten.Image) {
	fb := w.h.fb
	if w.img == nil {
		w.pix = make([]byte, fb.width*fb.height*4)
		w.img = ebiten.NewImage(fb.width, fb.height)
	}
	if gen, changed := fb.copyRGBA(w.pix, w.seen); changed {
		w.seen = gen
		w.img.WritePixels(w.pix)
	}
	screen.DrawImage(w.img, nil)
}

func (w *window) Layout(int, int) (int, int) {
	return w.h.fb.width, w.h.fb.height
}
