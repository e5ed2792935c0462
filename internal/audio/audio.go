package audio

import (
	goaudio "github.com/go-audio/audio"
)

// Format describes the PCM layout buffers are delivered in.
type Format struct {
	SampleRate  int
	BitDepth    int
	Interleaved bool
}

// CaptureFormat is the wire-level contract with the hardware layer:
// 48 kHz, 16-bit signed linear PCM, interleaved, not floating point.
var CaptureFormat = Format{
	SampleRate:  48000,
	BitDepth:    16,
	Interleaved: true,
}

// Device represents an audio input device at enumeration time. Values
// are snapshots; hardware can disconnect at any moment afterwards.
type Device struct {
	ID        string
	Name      string
	Connected bool
	Suspended bool
	Default   bool
}

// BufferHandler consumes raw capture buffers. OnBuffer runs on the
// dedicated capture goroutine and must not block.
type BufferHandler interface {
	OnBuffer(buf *goaudio.IntBuffer)
}

// Input is an input endpoint bound to one device.
type Input interface {
	Start() error
	Stop() error
	Detach() error
}

// Output is an output endpoint: a buffer sink with a fixed format and a
// registered handler. Inputs attach to it one at a time.
type Output interface {
	AttachInput(dev Device) (Input, error)
	Close() error
}

// Backend abstracts the platform capture layer: device enumeration plus
// endpoint construction.
type Backend interface {
	Devices() ([]Device, error)
	DefaultDevice() (Device, bool, error)
	NewOutput(format Format, h BufferHandler) (Output, error)
	Close() error
}
