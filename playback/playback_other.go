//go:build !linux

package playback

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

const cueDuration = 0.05

func playSamples(samples []int16, sampleRate, channels int) {
	if len(samples) == 0 {
		return
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.SampleRate = uint32(sampleRate)

	pos := 0
	done := make(chan struct{})
	var once sync.Once
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			n := copy(out, pcm[pos:])
			pos += n
			if pos >= len(pcm) {
				once.Do(func() { close(done) })
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		return
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(30 * time.Second):
	}
	dev.Stop()
}
