package audio

import (
	"os"
	"sync"
)

const (
	fakeChunkFrames = 1024
	fakeWAVHeader   = 44
	bytesPerFrame   = 2 // 16-bit mono
)

// FakeContext replays pre-recorded PCM through the CaptureDevice
// interface. Used by tests and by headless -check mode.
type FakeContext struct {
	pcm []byte

	mu       sync.Mutex
	failNext error
	open     int
}

// NewFakeContext loads PCM from a WAV file (the 44-byte header is
// stripped; the payload is fed as raw capture data).
func NewFakeContext(wavPath string) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > fakeWAVHeader {
		data = data[fakeWAVHeader:]
	}
	return &FakeContext{pcm: data}, nil
}

// NewFakeContextPCM wraps raw PCM bytes directly.
func NewFakeContextPCM(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

// FailNext makes the next NewCapture call return err. Tests only.
func (f *FakeContext) FailNext(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

// OpenHandles reports how many capture handles are currently open; the
// guard invariant says this never exceeds 1.
func (f *FakeContext) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig, cb DataCallback) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	return &fakeCapture{ctx: f, pcm: f.pcm, cb: cb}, nil
}

type fakeCapture struct {
	ctx *FakeContext
	pcm []byte
	cb  DataCallback

	mu     sync.Mutex
	opened bool
	closed bool
}

// Start feeds the entire recording synchronously, chunked the way a
// real device would deliver it.
func (c *fakeCapture) Start() error {
	c.mu.Lock()
	if !c.opened {
		c.opened = true
		c.ctx.mu.Lock()
		c.ctx.open++
		c.ctx.mu.Unlock()
	}
	c.mu.Unlock()

	chunk := fakeChunkFrames * bytesPerFrame
	for pos := 0; pos < len(c.pcm); pos += chunk {
		end := min(pos+chunk, len(c.pcm))
		c.cb(c.pcm[pos:end], uint32((end-pos)/bytesPerFrame))
	}
	return nil
}

func (c *fakeCapture) Stop() {}

func (c *fakeCapture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened && !c.closed {
		c.closed = true
		c.ctx.mu.Lock()
		c.ctx.open--
		c.ctx.mu.Unlock()
	}
}
