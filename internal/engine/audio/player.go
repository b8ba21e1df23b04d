// Package audio plays the music track that accompanies a motion.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/logger"
	"github.com/Faultbox/mmd-overlay/internal/playback"
)

// DefaultSampleRate is the output sample rate.
const DefaultSampleRate = beep.SampleRate(44100)

// ErrUnsupportedFormat is returned for audio files that cannot be decoded.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Output is where decoded audio goes. The speaker is the real output; tests
// substitute one that pulls samples by hand.
type Output interface {
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

type speakerOutput struct{}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Clear()               { speaker.Clear() }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }

type track struct {
	path     string
	streamer beep.StreamSeekCloser
	format   beep.Format
	loop     *loopStreamer
	volume   *effects.Volume
	finished atomic.Bool
}

// Player plays one track at a time and reports its position.
type Player struct {
	mu sync.Mutex

	out        Output
	sampleRate beep.SampleRate

	track   *track
	lastPos time.Duration
	hasLast bool

	volume float64
	muted  bool
}

var _ playback.AudioPlayer = (*Player)(nil)

// NewPlayer initializes the system speaker.
func NewPlayer() (*Player, error) {
	if err := speaker.Init(DefaultSampleRate, DefaultSampleRate.N(time.Second/30)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return NewPlayerWithOutput(speakerOutput{}, DefaultSampleRate), nil
}

// NewPlayerWithOutput creates a player on a custom output.
func NewPlayerWithOutput(out Output, sampleRate beep.SampleRate) *Player {
	return &Player{
		out:        out,
		sampleRate: sampleRate,
		volume:     1.0,
	}
}

// PlayLoop replaces the current track with path.
func (p *Player) PlayLoop(path string, loop bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	t, err := p.open(path)
	if err != nil {
		logger.Warn("audio open failed", zap.String("path", path), zap.Error(err))
		return false
	}
	t.loop.loop = loop

	var s beep.Streamer = t.loop
	if t.format.SampleRate != p.sampleRate {
		s = beep.Resample(4, t.format.SampleRate, p.sampleRate, t.loop)
	}
	t.volume = &effects.Volume{Streamer: s, Base: 2}
	applyVolume(t.volume, p.effectiveVolume())

	p.track = t
	p.hasLast = false
	p.out.Play(beep.Seq(t.volume, beep.Callback(func() {
		t.finished.Store(true)
	})))

	logger.Debug("audio playing",
		zap.String("path", path),
		zap.Bool("loop", loop),
		zap.Int("sample_rate", int(t.format.SampleRate)),
	)
	return true
}

func (p *Player) open(path string) (*track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	return &track{
		path:     path,
		streamer: streamer,
		format:   format,
		loop:     &loopStreamer{streamer: streamer},
	}, nil
}

// Stop halts playback.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.track == nil {
		return
	}
	p.out.Clear()
	p.out.Lock()
	p.track.streamer.Close()
	p.out.Unlock()
	p.track = nil
	p.hasLast = false
}

// Close stops playback. The speaker itself stays initialized for the process.
func (p *Player) Close() {
	p.Stop()
}

// SetVolume sets the linear volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = clamp(volume, 0, 1)
	p.updateVolume()
}

// SetMuted silences output without losing the volume level.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	p.updateVolume()
}

// Volume returns the linear volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) effectiveVolume() float64 {
	if p.muted {
		return 0
	}
	return p.volume
}

func (p *Player) updateVolume() {
	if p.track == nil {
		return
	}
	p.out.Lock()
	applyVolume(p.track.volume, p.effectiveVolume())
	p.out.Unlock()
}

// LengthSeconds returns the current track length.
func (p *Player) LengthSeconds() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return 0
	}
	p.out.Lock()
	n := p.track.streamer.Len()
	p.out.Unlock()
	return p.track.format.SampleRate.D(n).Seconds()
}

// PlaybackTimes returns the position of the current track and how far it
// moved since the previous call. A wrap around the loop point counts forward.
func (p *Player) PlaybackTimes() (playback.PlaybackTimes, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return playback.PlaybackTimes{}, false
	}

	p.out.Lock()
	pos := p.track.format.SampleRate.D(p.track.streamer.Position())
	length := p.track.format.SampleRate.D(p.track.streamer.Len())
	err := p.track.loop.Err()
	p.out.Unlock()
	if err != nil {
		return playback.PlaybackTimes{}, false
	}

	var delta time.Duration
	if p.hasLast {
		delta = pos - p.lastPos
		if delta < 0 {
			delta += length
		}
	}
	p.lastPos = pos
	p.hasLast = true

	return playback.PlaybackTimes{
		Delta:    float32(delta.Seconds()),
		Position: float32(pos.Seconds()),
		Finished: p.track.finished.Load(),
	}, true
}

// Playing reports whether a track is loaded and has not run out.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track != nil && !p.track.finished.Load()
}

// Path returns the current track path.
func (p *Player) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return ""
	}
	return p.track.path
}

func applyVolume(v *effects.Volume, vol float64) {
	if vol <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = volumeToExponent(vol)
}

// volumeToExponent converts a linear 0-1 volume to the base-2 exponent
// effects.Volume expects: 1 -> 0, 0.5 -> -1, 0.25 -> -2.
func volumeToExponent(vol float64) float64 {
	if vol <= 0 {
		return math.Inf(-1)
	}
	return math.Log2(vol)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// loopStreamer restarts the underlying streamer when it runs out.
type loopStreamer struct {
	streamer beep.StreamSeekCloser
	loop     bool
}

func (l *loopStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	filled := 0
	for filled < len(samples) {
		n, ok := l.streamer.Stream(samples[filled:])
		filled += n
		if ok {
			continue
		}
		if !l.loop || l.streamer.Len() == 0 {
			return filled, filled > 0
		}
		if err := l.streamer.Seek(0); err != nil {
			return filled, false
		}
	}
	return filled, true
}

func (l *loopStreamer) Err() error {
	return l.streamer.Err()
}
