package audio

import (
	"errors"
	"sync"
)

// Guard owns the single exclusive microphone handle. Every path that
// opens a capture device goes through Acquire, and every exit path
// (normal stop, error, cancel) calls Release, so the handle can never
// leak across items or fight reference-audio playback for the device.
type Guard struct {
	mu     sync.Mutex
	active CaptureDevice
}

func NewGuard() *Guard {
	return &Guard{}
}

// Acquire releases any previously held handle, then opens and starts a
// new one. On any failure the guard is left empty.
func (g *Guard) Acquire(open func() (CaptureDevice, error)) (CaptureDevice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.releaseLocked()

	dev, err := open()
	if err != nil {
		return nil, ensureCaptureError(err)
	}
	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, ensureCaptureError(err)
	}
	g.active = dev
	return dev, nil
}

// ensureCaptureError keeps the capture taxonomy intact even when a
// Context implementation returns a plain error.
func ensureCaptureError(err error) error {
	var cerr *CaptureError
	if errors.As(err, &cerr) {
		return err
	}
	return classify(err)
}

// Release stops and closes the held handle, if any. Safe to call
// repeatedly.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked()
}

func (g *Guard) releaseLocked() {
	if g.active == nil {
		return
	}
	g.active.Stop()
	g.active.Close()
	g.active = nil
}

// Held reports whether a capture handle is currently open.
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active != nil
}
