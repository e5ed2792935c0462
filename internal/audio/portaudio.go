package audio

import (
	"context"
	"fmt"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

// framesPerBuffer is the capture chunk size requested from PortAudio.
const framesPerBuffer = 512

// maxCaptureChannels caps how many device channels are opened; level
// metering has no use for more than a stereo pair.
const maxCaptureChannels = 2

type portAudioBackend struct{}

// New creates a PortAudio-based capture backend.
func New() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{}, nil
}

func (p *portAudioBackend) Devices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			// PortAudio only reports devices it can open, so anything
			// enumerated here counts as connected and not suspended.
			result = append(result, Device{
				ID:        d.Name,
				Name:      d.Name,
				Connected: true,
				Default:   d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioBackend) DefaultDevice() (Device, bool, error) {
	d, err := portaudio.DefaultInputDevice()
	if err != nil || d == nil {
		// No input hardware present.
		return Device{}, false, nil
	}
	return Device{ID: d.Name, Name: d.Name, Connected: true, Default: true}, true, nil
}

func (p *portAudioBackend) NewOutput(format Format, h BufferHandler) (Output, error) {
	if h == nil {
		return nil, fmt.Errorf("no buffer handler registered")
	}
	return &portAudioOutput{format: format, handler: h}, nil
}

func (p *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

// portAudioOutput holds the fixed capture format and the registered
// handler; it survives device changes unchanged.
type portAudioOutput struct {
	format  Format
	handler BufferHandler

	mu    sync.Mutex
	input *portAudioInput
}

func (o *portAudioOutput) AttachInput(dev Device) (Input, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var info *portaudio.DeviceInfo
	for _, d := range devices {
		if d.Name == dev.ID && d.MaxInputChannels > 0 {
			info = d
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("input device not found: %s", dev.ID)
	}

	channels := info.MaxInputChannels
	if channels > maxCaptureChannels {
		channels = maxCaptureChannels
	}

	buffer := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(o.format.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	in := &portAudioInput{
		output:   o,
		stream:   stream,
		buffer:   buffer,
		channels: channels,
	}

	o.mu.Lock()
	o.input = in
	o.mu.Unlock()

	return in, nil
}

func (o *portAudioOutput) Close() error {
	o.mu.Lock()
	in := o.input
	o.input = nil
	o.mu.Unlock()

	if in != nil {
		return in.Detach()
	}
	return nil
}

type portAudioInput struct {
	output   *portAudioOutput
	stream   *portaudio.Stream
	buffer   []int16
	channels int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (in *portAudioInput) Start() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.cancel != nil {
		return nil
	}

	if err := in.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	in.cancel = cancel
	in.done = done

	go in.readLoop(ctx, done)

	return nil
}

// readLoop is the dedicated capture goroutine: it hands every buffer to
// the registered handler and nothing else.
func (in *portAudioInput) readLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	format := &goaudio.Format{
		NumChannels: in.channels,
		SampleRate:  in.output.format.SampleRate,
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := in.stream.Read(); err != nil {
			return
		}

		data := make([]int, len(in.buffer))
		for i, s := range in.buffer {
			data[i] = int(s)
		}

		in.output.handler.OnBuffer(&goaudio.IntBuffer{
			Format:         format,
			Data:           data,
			SourceBitDepth: in.output.format.BitDepth,
		})
	}
}

func (in *portAudioInput) Stop() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.stopLocked()
}

func (in *portAudioInput) stopLocked() error {
	if in.cancel == nil {
		return nil
	}

	in.cancel()
	in.cancel = nil

	err := in.stream.Stop()
	<-in.done
	in.done = nil

	if err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

func (in *portAudioInput) Detach() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.stopLocked(); err != nil {
		return err
	}

	in.output.mu.Lock()
	if in.output.input == in {
		in.output.input = nil
	}
	in.output.mu.Unlock()

	return in.stream.Close()
}
