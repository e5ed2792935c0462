// Package session owns the capture pipeline: device selection,
// permission gating, endpoint configuration and the start/stop
// lifecycle. A session moves Uninitialized -> Configured <-> Running;
// device changes apply in place without leaving either state.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/petems/miclevel/internal/audio"
	"github.com/petems/miclevel/internal/meter"
	"github.com/petems/miclevel/internal/permissions"
	"github.com/petems/miclevel/internal/stream"
)

// Config wires a session's collaborators.
type Config struct {
	Backend audio.Backend
	Gate    permissions.Gate
	Logger  zerolog.Logger
}

// Session serializes every state mutation through one command
// goroutine; public operations only enqueue. Failures never propagate
// to callers, they surface in the log (callers re-invoke Start to
// retry). The capture goroutine never touches session state, so the
// two sides cannot deadlock each other.
type Session struct {
	backend audio.Backend
	gate    permissions.Gate
	log     zerolog.Logger

	levels  *stream.Broadcaster
	reducer *meter.Reducer

	cmds chan func()
	done chan struct{}

	mu     sync.Mutex // guards closed + enqueue
	closed bool

	// Owned by the command goroutine.
	device     *audio.Device
	output     audio.Output
	input      audio.Input
	configured bool

	running atomic.Bool
}

// New constructs a session and picks the platform default input
// device. No hardware is allocated until the first Start.
func New(cfg Config) *Session {
	s := &Session{
		backend: cfg.Backend,
		gate:    cfg.Gate,
		log:     cfg.Logger,
		levels:  stream.NewBroadcaster(),
		cmds:    make(chan func(), 16),
		done:    make(chan struct{}),
	}
	s.reducer = meter.NewReducer(s.levels)

	go s.run()
	s.enqueue(s.initialize)

	return s
}

func (s *Session) run() {
	defer close(s.done)
	for cmd := range s.cmds {
		cmd()
	}
}

func (s *Session) enqueue(cmd func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.cmds <- cmd
	return true
}

func (s *Session) initialize() {
	if s.device != nil {
		return
	}
	dev, ok, err := s.backend.DefaultDevice()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to query default input device")
		return
	}
	if !ok {
		s.log.Warn().Msg("No input device available")
		return
	}
	s.device = &dev
}

// Start is fire-and-forget. Authorization runs on its own goroutine so
// a pending user prompt never blocks the command loop; the session
// transition is enqueued only once access is granted.
func (s *Session) Start() {
	go func() {
		if !s.gate.Authorize(context.Background()) {
			s.log.Warn().Msg("Microphone access not authorized")
			return
		}
		s.enqueue(s.startAuthorized)
	}()
}

func (s *Session) startAuthorized() {
	if !s.configured {
		s.configure()
		return
	}

	if s.running.Load() {
		return
	}
	if s.input == nil {
		// An earlier device change failed and left no input attached.
		s.log.Warn().Msg("No input endpoint attached; select a device first")
		return
	}
	if err := s.input.Start(); err != nil {
		s.log.Error().Err(err).Msg("Failed to start capture")
		return
	}
	s.running.Store(true)
	s.log.Info().Msg("Capture running")
}

// configure performs the one-time endpoint setup: resolve a device,
// create the fixed-format output endpoint with the reducer registered
// as its buffer consumer, attach the input, then begin capture. Any
// failure leaves the session Uninitialized.
func (s *Session) configure() {
	dev := s.device
	if dev == nil {
		d, ok, err := s.backend.DefaultDevice()
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to query default input device")
			return
		}
		if !ok {
			s.log.Error().Msg("No usable input device")
			return
		}
		dev = &d
		s.device = dev
	}

	out, err := s.backend.NewOutput(audio.CaptureFormat, s.reducer)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create output endpoint")
		return
	}

	in, err := out.AttachInput(*dev)
	if err != nil {
		out.Close()
		s.log.Error().Err(err).Str("device", dev.Name).Msg("Failed to attach input endpoint")
		return
	}

	s.output = out
	s.input = in
	s.configured = true

	if err := in.Start(); err != nil {
		s.log.Error().Err(err).Msg("Failed to start capture")
		return
	}
	s.running.Store(true)
	s.log.Info().Str("device", dev.Name).Msg("Capture running")
}

// Stop enqueues and returns immediately; hardware may still be winding
// down when it does. Poll IsRunning for confirmation. A no-op when not
// running, including when never configured.
func (s *Session) Stop() {
	s.enqueue(s.stopCapture)
}

func (s *Session) stopCapture() {
	if !s.running.Load() {
		return
	}
	if s.input != nil {
		if err := s.input.Stop(); err != nil {
			s.log.Error().Err(err).Msg("Failed to stop capture")
		}
	}
	s.running.Store(false)
	s.log.Info().Msg("Capture stopped")
}

// SelectDevice switches capture input. Before configuration it only
// records the pending choice; once configured it swaps the input
// endpoint in place, preserving running/stopped status. The output
// endpoint and reducer registration survive the swap.
func (s *Session) SelectDevice(dev audio.Device) {
	s.enqueue(func() { s.selectDevice(dev) })
}

func (s *Session) selectDevice(dev audio.Device) {
	if !s.configured {
		s.device = &dev
		return
	}

	wasRunning := s.running.Load()

	if s.input != nil {
		if err := s.input.Detach(); err != nil {
			s.log.Error().Err(err).Msg("Failed to detach input endpoint")
		}
		s.input = nil
	}

	s.device = &dev

	in, err := s.output.AttachInput(dev)
	if err != nil {
		// No revert to the previous device: the session stays in its
		// current state with no input attached, so capture falls
		// silent until the next successful device change.
		s.log.Error().Err(err).Str("device", dev.Name).Msg("Failed to attach input endpoint")
		return
	}
	s.input = in

	if wasRunning {
		if err := in.Start(); err != nil {
			s.log.Error().Err(err).Str("device", dev.Name).Msg("Failed to start capture on new device")
			return
		}
	}
	s.log.Info().Str("device", dev.Name).Msg("Input device changed")
}

// IsRunning is a lock-free snapshot; it reflects the last settled
// transition, not commands still in the queue.
func (s *Session) IsRunning() bool {
	return s.running.Load()
}

// AvailableDevices lists input devices that are connected and not
// suspended. Results can go stale the moment they are returned.
func (s *Session) AvailableDevices() ([]audio.Device, error) {
	devices, err := s.backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	avail := make([]audio.Device, 0, len(devices))
	for _, d := range devices {
		if d.Connected && !d.Suspended {
			avail = append(avail, d)
		}
	}
	return avail, nil
}

// Subscribe attaches a new consumer to the level stream. Only samples
// published after the call are delivered.
func (s *Session) Subscribe() *stream.Subscription {
	return s.levels.Subscribe()
}

// Close tears the session down: capture stops, endpoints detach and
// the level stream ends. The session is unusable afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
	} else {
		s.closed = true
		s.cmds <- s.teardown
		close(s.cmds)
		s.mu.Unlock()
	}

	select {
	case <-s.done:
		s.levels.Close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) teardown() {
	if s.input != nil {
		if err := s.input.Detach(); err != nil {
			s.log.Error().Err(err).Msg("Failed to detach input endpoint")
		}
		s.input = nil
	}
	if s.output != nil {
		if err := s.output.Close(); err != nil {
			s.log.Error().Err(err).Msg("Failed to close output endpoint")
		}
		s.output = nil
	}
	s.configured = false
	s.running.Store(false)
}
