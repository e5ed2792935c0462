package meter

import (
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
)

// silenceFloorDB bounds the reading for an all-zero channel so levels
// stay finite.
const silenceFloorDB = -120.0

// Sample is one timestamped loudness reading on a dBFS-like scale.
// The timestamp doubles as the sample's identity, so consecutive
// samples always carry strictly increasing times.
type Sample struct {
	Time  time.Time
	Level float32
}

// Publisher receives reduced samples. Publish must not block; the
// reducer runs inside the capture callback.
type Publisher interface {
	Publish(s Sample)
}

// Reducer collapses one raw capture buffer into one scalar level:
// the per-channel average powers in dBFS, summed across channels.
// Summing (rather than averaging) makes a stereo signal read louder
// than either channel alone.
type Reducer struct {
	pub  Publisher
	last time.Time
	now  func() time.Time
}

func NewReducer(pub Publisher) *Reducer {
	return &Reducer{pub: pub, now: time.Now}
}

// OnBuffer implements the capture backend's buffer handler. A buffer
// with no channels or no frames produces no sample.
func (r *Reducer) OnBuffer(buf *goaudio.IntBuffer) {
	level, ok := SumPowers(ChannelPowers(buf))
	if !ok {
		return
	}

	t := r.now()
	if !t.After(r.last) {
		t = r.last.Add(time.Nanosecond)
	}
	r.last = t

	r.pub.Publish(Sample{Time: t, Level: level})
}

// ChannelPowers returns each channel's average power in dBFS for one
// interleaved PCM buffer. Returns nil when the buffer has no channels
// or no complete frames.
func ChannelPowers(buf *goaudio.IntBuffer) []float32 {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	fullScale := float64(int64(1) << (bitDepth - 1))

	powers := make([]float32, channels)
	for c := 0; c < channels; c++ {
		var sum float64
		for f := 0; f < frames; f++ {
			s := float64(buf.Data[f*channels+c]) / fullScale
			sum += s * s
		}

		db := silenceFloorDB
		if ms := sum / float64(frames); ms > 0 {
			db = 10 * math.Log10(ms)
			if db < silenceFloorDB {
				db = silenceFloorDB
			}
		}
		powers[c] = float32(db)
	}

	return powers
}

// SumPowers sums per-channel powers into the buffer's level. ok is
// false when there are no channels to read.
func SumPowers(powers []float32) (level float32, ok bool) {
	if len(powers) == 0 {
		return 0, false
	}
	for _, p := range powers {
		level += p
	}
	return level, true
}
