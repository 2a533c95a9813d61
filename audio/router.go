package audio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ByLCY/rotulus/media"
)

// chunkFrames is the pump granularity: 20ms of audio per chunk.
const chunkFrames = media.SampleRate / 50

// source is one playback node in the graph. It is created once per clip
// handle; re-attaching the same clip keeps the node and its position.
type source struct {
	clip *media.AudioClip
	pos  int
	gain *ramp
}

func (s *source) sample() (left, right float32) {
	idx := s.pos * media.Channels
	if s.clip == nil || idx+1 >= len(s.clip.PCM) {
		return 0, 0
	}
	return s.clip.PCM[idx], s.clip.PCM[idx+1]
}

func (s *source) ended() bool {
	return s.clip == nil || s.pos >= len(s.clip.PCM)/media.Channels
}

// Router is the audio graph. Each source feeds two buses through its own
// gain node: the capture bus (pulled by the encoder) and the monitor bus
// (pushed to the local device). A shared monitor gain sits only on the
// monitor path, so muting the device never touches what gets recorded.
type Router struct {
	log  zerolog.Logger
	sink MonitorSink

	mu          sync.Mutex
	main        *source
	bg          *source
	monitorMute *ramp
	captureFn   func(samples []float32)
	playing     bool
	frames      int64

	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Router.
type Option func(*Router)

// WithMonitorSink overrides the default ffplay monitor sink.
func WithMonitorSink(s MonitorSink) Option { return func(r *Router) { r.sink = s } }

// NewRouter creates a stopped router with both buses silent.
func NewRouter(log zerolog.Logger, opts ...Option) *Router {
	r := &Router{
		log:         log,
		sink:        NewFFPlaySink(),
		monitorMute: newRamp(1),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetMain attaches the primary narration clip. Passing the clip that is
// already attached is a no-op and keeps the playback position.
func (r *Router) SetMain(clip *media.AudioClip, volume float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.main != nil && r.main.clip == clip {
		r.main.gain.set(float32(volume))
		return
	}
	if clip == nil {
		r.main = nil
		return
	}
	r.main = &source{clip: clip, gain: newRamp(float32(volume))}
}

// SetBackground attaches the background music clip, same contract as SetMain.
func (r *Router) SetBackground(clip *media.AudioClip, volume float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bg != nil && r.bg.clip == clip {
		r.bg.gain.set(float32(volume))
		return
	}
	if clip == nil {
		r.bg = nil
		return
	}
	r.bg = &source{clip: clip, gain: newRamp(float32(volume))}
}

// SetMainVolume ramps the main gain node.
func (r *Router) SetMainVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.main != nil {
		r.main.gain.set(float32(v))
	}
}

// SetBackgroundVolume ramps the background gain node.
func (r *Router) SetBackgroundVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bg != nil {
		r.bg.gain.set(float32(v))
	}
}

// SetMonitorMuted ramps the monitor path gain to zero (or back to one).
// The capture bus is upstream of this gain and is not affected.
func (r *Router) SetMonitorMuted(muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if muted {
		r.monitorMute.set(0)
	} else {
		r.monitorMute.set(1)
	}
}

// OnCaptureFrames registers the capture bus consumer. Pass nil to detach.
func (r *Router) OnCaptureFrames(fn func(samples []float32)) {
	r.mu.Lock()
	r.captureFn = fn
	r.mu.Unlock()
}

// Start launches the monitor sink and the pump goroutine. An unavailable
// audio device is not fatal: the monitor degrades to a null sink and the
// capture path keeps working.
func (r *Router) Start() {
	if err := r.sink.Start(); err != nil {
		r.log.Warn().Err(err).Msg("monitor sink unavailable, muting monitor output")
		r.sink = NullSink{}
	}
	r.wg.Add(1)
	go r.pump()
}

// Play starts advancing the transport.
func (r *Router) Play() {
	r.mu.Lock()
	r.playing = true
	r.mu.Unlock()
}

// Pause freezes the transport without tearing down the graph.
func (r *Router) Pause() {
	r.mu.Lock()
	r.playing = false
	r.mu.Unlock()
}

// Seek moves both sources and the transport to t seconds.
func (r *Router) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	frame := int(t * media.SampleRate)
	r.mu.Lock()
	if r.main != nil {
		r.main.pos = frame
	}
	if r.bg != nil {
		r.bg.pos = frame
	}
	r.frames = int64(frame)
	r.mu.Unlock()
}

// Rewind resets the transport to zero.
func (r *Router) Rewind() { r.Seek(0) }

// PlaybackPosition returns the transport position in seconds.
func (r *Router) PlaybackPosition() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.frames) / media.SampleRate
}

// MainEnded reports whether the main clip has played to its end.
func (r *Router) MainEnded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.main != nil && r.main.ended()
}

// HasMain reports whether a main clip is attached.
func (r *Router) HasMain() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.main != nil
}

// Close stops the pump and releases the monitor sink.
func (r *Router) Close() error {
	close(r.stop)
	r.wg.Wait()
	return r.sink.Close()
}

func (r *Router) pump() {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Second / 50)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			monitor, capture, fn := r.renderChunk(chunkFrames)
			if monitor == nil {
				continue
			}
			if err := r.sink.Write(monitor); err != nil {
				r.log.Warn().Err(err).Msg("monitor write failed, muting monitor output")
				r.sink.Close()
				r.sink = NullSink{}
			}
			if fn != nil {
				fn(capture)
			}
		}
	}
}

// renderChunk mixes the next n frames onto both buses. It returns nil
// buffers while the transport is paused.
func (r *Router) renderChunk(n int) (monitor, capture []float32, fn func([]float32)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.playing {
		return nil, nil, nil
	}
	monitor = make([]float32, n*media.Channels)
	capture = make([]float32, n*media.Channels)
	for f := 0; f < n; f++ {
		mute := r.monitorMute.next()
		for _, src := range []*source{r.main, r.bg} {
			if src == nil {
				continue
			}
			g := src.gain.next()
			l, rt := src.sample()
			src.pos++
			capture[f*media.Channels] += l * g
			capture[f*media.Channels+1] += rt * g
			monitor[f*media.Channels] += l * g * mute
			monitor[f*media.Channels+1] += rt * g * mute
		}
	}
	r.frames += int64(n)
	return monitor, capture, r.captureFn
}
