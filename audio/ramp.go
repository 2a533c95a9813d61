package audio

import "github.com/ByLCY/rotulus/media"

// rampSeconds is the time a gain change takes to settle. Gains never jump;
// every change is a short linear ramp so playback stays click-free.
const rampSeconds = 0.1

// ramp is a per-frame linear gain interpolator.
type ramp struct {
	current float32
	target  float32
	step    float32
}

func newRamp(v float32) *ramp {
	return &ramp{current: v, target: v}
}

// set starts a linear ramp from the current value to target.
func (r *ramp) set(target float32) {
	r.target = target
	frames := float32(rampSeconds * media.SampleRate)
	r.step = (target - r.current) / frames
}

// next advances the ramp by one frame and returns the gain to apply.
func (r *ramp) next() float32 {
	if r.current == r.target {
		return r.current
	}
	r.current += r.step
	if (r.step > 0 && r.current >= r.target) || (r.step < 0 && r.current <= r.target) {
		r.current = r.target
		r.step = 0
	}
	return r.current
}

func (r *ramp) value() float32 { return r.current }
