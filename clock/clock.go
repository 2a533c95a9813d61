// Package clock drives frame timing in two regimes: an interactive
// scheduler that follows the audio transport at display rate, and an
// export scheduler that ticks at the encode frame rate on its own
// goroutine so a hidden or busy UI can never stall or dilate the output.
package clock

import (
	"context"
	"time"
)

const (
	// interactiveHz approximates the display refresh rate.
	interactiveHz = 60
	// graceSeconds extends the export stop deadline past MaxDuration to
	// cover audio/visual desync at the tail.
	graceSeconds = 0.5
)

// Tick carries one presentation timestamp. Frame is only meaningful in
// the export regime, where every tick maps to exactly one encoded frame.
type Tick struct {
	Time  float64
	Frame int64
}

// Config is shared by both regimes.
type Config struct {
	// MaxDuration is the playback length in seconds; zero disables the
	// duration stop condition.
	MaxDuration float64
	// Start seeds the wall-clock accumulator, so a paused transport
	// resumes from where it stopped instead of from zero.
	Start float64
	// Position returns the authoritative transport position. ok=false
	// makes the scheduler fall back to its wall-clock accumulator,
	// which is the degraded mode used when audio is broken or absent.
	Position func() (t float64, ok bool)
	// Ended reports whether the primary audio has played to its end.
	Ended func() bool
}

func (c Config) ended() bool { return c.Ended != nil && c.Ended() }

// Interactive is the preview-mode scheduler.
type Interactive struct {
	cfg Config
}

// NewInteractive creates a preview scheduler.
func NewInteractive(cfg Config) *Interactive { return &Interactive{cfg: cfg} }

// Run emits ticks at display rate until the transport ends, the max
// duration is reached, or ctx is cancelled. The channel is closed on
// stop. Sends never block: a slow consumer just skips frames, which is
// the right behavior for a live preview.
func (s *Interactive) Run(ctx context.Context) <-chan Tick {
	ch := make(chan Tick, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(time.Second / interactiveHz)
		defer ticker.Stop()
		last := time.Now()
		acc := s.cfg.Start
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				acc += now.Sub(last).Seconds()
				last = now
				t := acc
				if s.cfg.Position != nil {
					if pos, ok := s.cfg.Position(); ok {
						t = pos
						acc = pos
					}
				}
				if s.cfg.ended() {
					return
				}
				if s.cfg.MaxDuration > 0 && t >= s.cfg.MaxDuration {
					send(ch, Tick{Time: s.cfg.MaxDuration})
					return
				}
				send(ch, Tick{Time: t})
			}
		}
	}()
	return ch
}

// send delivers a tick without blocking, replacing a stale unread tick.
func send(ch chan Tick, tick Tick) {
	select {
	case ch <- tick:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- tick:
		default:
		}
	}
}

// Export is the render-mode scheduler. Tick times come from the
// wall-clock accumulator, never from the audio transport: audio time
// reporting throttles when the host is hidden, while the recorded audio
// keeps running at wall rate. When rendering falls behind the nominal
// frame rate the emitted times skip forward, keeping content time in
// step with the captured audio.
type Export struct {
	cfg Config
	fps int
}

// NewExport creates an export scheduler at the given frame rate.
func NewExport(cfg Config, fps int) *Export {
	if fps <= 0 {
		fps = 30
	}
	return &Export{cfg: cfg, fps: fps}
}

// FPS returns the configured frame rate.
func (s *Export) FPS() int { return s.fps }

// Run emits one tick per output frame on an unbuffered channel, so the
// consumer paces the producer and no frame is ever dropped unread. Each
// tick adds the wall delta since the previous one to the accumulator and
// carries the accumulator as its time. It stops when the transport ends,
// when the accumulator exceeds MaxDuration plus grace, or when ctx is
// cancelled.
func (s *Export) Run(ctx context.Context) <-chan Tick {
	ch := make(chan Tick)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(time.Second / time.Duration(s.fps))
		defer ticker.Stop()
		last := time.Now()
		acc := s.cfg.Start
		var frame int64
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				acc += now.Sub(last).Seconds()
				last = now
				if s.cfg.ended() {
					return
				}
				if s.cfg.MaxDuration > 0 && acc > s.cfg.MaxDuration+graceSeconds {
					return
				}
				select {
				case ch <- Tick{Time: acc, Frame: frame}:
					frame++
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
