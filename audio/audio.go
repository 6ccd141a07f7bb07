package audio

import (
	"errors"
	"fmt"
	"strings"
)

// Capture error kinds. None of these end a practice session; the
// learner can retry the current sentence.
const (
	KindUnsupportedFormat = "unsupported-format"
	KindPermissionDenied  = "permission-denied"
	KindDeviceUnavailable = "device-unavailable"
)

// CaptureError classifies a microphone or decode failure.
type CaptureError struct {
	Kind string
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return "capture: " + e.Kind
	}
	return fmt.Sprintf("capture (%s): %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// NewCaptureError wraps err with a capture kind.
func NewCaptureError(kind string, err error) *CaptureError {
	return &CaptureError{Kind: kind, Err: err}
}

// classify maps a platform error onto a capture kind by message, since
// neither backend exposes typed permission errors.
func classify(err error) *CaptureError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "denied") || strings.Contains(msg, "permission") ||
		strings.Contains(msg, "access"):
		return NewCaptureError(KindPermissionDenied, err)
	default:
		return NewCaptureError(KindDeviceUnavailable, err)
	}
}

// DataCallback receives captured bytes as the device produces them.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates capture devices and opens capture handles.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig, cb DataCallback) (CaptureDevice, error)
	Close()
}

// CaptureDevice is one open microphone handle. Exactly one may be live
// at a time; Guard enforces that.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
}

var errNoDevices = errors.New("no capture devices found")

var btKeywords = []string{
	"airpods", "beats", "bose", "jabra", "galaxy buds", "pixel buds",
	"soundcore", "bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses whether a device name belongs to a Bluetooth
// headset, whose narrowband capture profile degrades assessment scores.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
