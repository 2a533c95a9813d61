// Package player owns the whole engine: the parsed scene, the layout
// engine, the frame compositor, the audio router, the schedulers and the
// recorder. It applies the dirty-flag rules that decide when a config
// change forces a relayout and when a repaint is enough.
package player

import (
	"context"
	"image"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ByLCY/rotulus/audio"
	"github.com/ByLCY/rotulus/capture"
	"github.com/ByLCY/rotulus/clock"
	"github.com/ByLCY/rotulus/layout"
	"github.com/ByLCY/rotulus/media"
	canvasrenderer "github.com/ByLCY/rotulus/renderer/canvas"
	"github.com/ByLCY/rotulus/scene"
)

// Player drives one loaded project.
type Player struct {
	log     zerolog.Logger
	baseDir string
	outDir  string

	prober       capture.EncoderProber
	monitorSink  audio.MonitorSink
	muxCommand   func(capture.Codec, int, int, int) *exec.Cmd
	probeCache   *media.ProbeCache
	mediaProber  media.Prober
	mediaDecoder media.Decoder

	mu      sync.Mutex
	project *scene.Project
	cfg     *scene.Config
	engine  *layout.Engine
	comp    *canvasrenderer.Compositor
	table   *media.Table
	router  *audio.Router

	model       *layout.LineModel
	maxDuration float64
	needLayout  bool
	wallTime    float64

	onFrame  func(frame *image.RGBA, t float64)
	onChange func()

	playCancel context.CancelFunc
	playGen    uint64

	recorder     *capture.Recorder
	recordCancel context.CancelFunc
	recordDone   chan struct{}
}

// Option configures a Player.
type Option func(*Player)

// WithOutputDir sets the directory finished recordings are written to.
func WithOutputDir(dir string) Option { return func(p *Player) { p.outDir = dir } }

// WithEncoderProber overrides codec probing, mainly for tests.
func WithEncoderProber(pr capture.EncoderProber) Option {
	return func(p *Player) { p.prober = pr }
}

// WithMonitorSink overrides the audio monitor output, mainly for tests.
func WithMonitorSink(s audio.MonitorSink) Option {
	return func(p *Player) { p.monitorSink = s }
}

// WithMuxCommand overrides the recording muxer subprocess, mainly for tests.
func WithMuxCommand(fn func(capture.Codec, int, int, int) *exec.Cmd) Option {
	return func(p *Player) { p.muxCommand = fn }
}

// WithProbeCache attaches a persistent media probe cache.
func WithProbeCache(c *media.ProbeCache) Option {
	return func(p *Player) { p.probeCache = c }
}

// WithMediaProber overrides audio duration probing, mainly for tests.
func WithMediaProber(pr media.Prober) Option {
	return func(p *Player) { p.mediaProber = pr }
}

// WithMediaDecoder overrides audio decoding, mainly for tests.
func WithMediaDecoder(d media.Decoder) Option {
	return func(p *Player) { p.mediaDecoder = d }
}

// NewPlayer creates an empty player rooted at baseDir for resource paths.
func NewPlayer(baseDir string, log zerolog.Logger, opts ...Option) *Player {
	p := &Player{
		log:     log,
		baseDir: baseDir,
		outDir:  ".",
		prober:  &capture.FFEncoderProber{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnFrame registers the preview frame consumer.
func (p *Player) OnFrame(fn func(frame *image.RGBA, t float64)) {
	p.mu.Lock()
	p.onFrame = fn
	p.mu.Unlock()
}

// OnChange registers the callback fired when an interaction mutates the
// config, once per effective change.
func (p *Player) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// LoadProject replaces the current project. Media failures are isolated:
// the affected elements are skipped while the rest of the scene loads.
func (p *Player) LoadProject(project *scene.Project) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.project = project
	p.cfg = project.Config
	p.comp = canvasrenderer.NewCompositor(p.baseDir, project.Resources)
	p.engine = layout.NewEngine(p.comp)

	tableOpts := []media.Option{}
	if p.probeCache != nil {
		tableOpts = append(tableOpts, media.WithProbeCache(p.probeCache))
	}
	if p.mediaProber != nil {
		tableOpts = append(tableOpts, media.WithProber(p.mediaProber))
	}
	if p.mediaDecoder != nil {
		tableOpts = append(tableOpts, media.WithDecoder(p.mediaDecoder))
	}
	p.table = media.NewTable(p.baseDir, p.log, tableOpts...)
	for _, err := range p.table.Load(project.Resources) {
		p.log.Warn().Err(err).Msg("resource skipped")
	}

	routerOpts := []audio.Option{}
	if p.monitorSink != nil {
		routerOpts = append(routerOpts, audio.WithMonitorSink(p.monitorSink))
	}
	if p.router != nil {
		p.router.Close()
	}
	p.router = audio.NewRouter(p.log, routerOpts...)
	p.attachAudioLocked()
	p.router.Start()

	p.needLayout = true
	return p.relayoutLocked()
}

// attachAudioLocked rewires the router to the configured clips. A name
// whose clip failed to load detaches the bus, so timing authority falls
// back to the wall clock instead of a stale track keeping it.
func (p *Player) attachAudioLocked() {
	var main *media.AudioClip
	if p.cfg.MainAudio != "" {
		clip, ok := p.table.Clip(p.cfg.MainAudio)
		if !ok {
			p.log.Warn().Str("name", p.cfg.MainAudio).Msg("main audio unavailable, detached")
		}
		main = clip
	}
	p.router.SetMain(main, p.cfg.MainVolume)

	var bg *media.AudioClip
	if p.cfg.BackgroundAudio != "" {
		clip, ok := p.table.Clip(p.cfg.BackgroundAudio)
		if !ok {
			p.log.Warn().Str("name", p.cfg.BackgroundAudio).Msg("background audio unavailable, detached")
		}
		bg = clip
	}
	p.router.SetBackground(bg, p.cfg.BackgroundVolume)
}

// relayoutLocked rebuilds the line model and the derived scroll speed
// and max duration. Caller holds p.mu.
func (p *Player) relayoutLocked() error {
	w, h := p.cfg.Dimensions()
	model, err := p.engine.Layout(p.cfg.Script, p.cfg.Font, layout.MaxWidthFor(w))
	if err != nil {
		return err
	}
	p.model = model

	audioDuration := 0.0
	if p.cfg.MainAudio != "" {
		if clip, ok := p.table.Clip(p.cfg.MainAudio); ok {
			audioDuration = clip.Duration
		}
	}
	p.cfg.ScrollSpeed = layout.ResolveSpeed(p.cfg.AutoSpeed, p.cfg.ScrollSpeed, model.TotalHeight, h, audioDuration)
	p.maxDuration = layout.MaxDuration(audioDuration, model.TotalHeight, h, p.cfg.ScrollSpeed)
	p.needLayout = false

	p.log.Debug().
		Int("lines", model.LineCount()).
		Float64("speed", p.cfg.ScrollSpeed).
		Float64("maxDuration", p.maxDuration).
		Msg("layout rebuilt")
	return nil
}

// Update applies a config mutation and re-derives state. Changes to the
// script, the font or the canvas size force a relayout; everything else
// only needs a repaint, which the next rendered frame delivers anyway.
func (p *Player) Update(mutate func(cfg *scene.Config)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	before := *p.cfg
	mutate(p.cfg)

	if p.cfg.Script != before.Script || p.cfg.Font != before.Font || p.cfg.Aspect != before.Aspect {
		p.needLayout = true
	}
	if p.cfg.MainVolume != before.MainVolume {
		p.router.SetMainVolume(p.cfg.MainVolume)
	}
	if p.cfg.BackgroundVolume != before.BackgroundVolume {
		p.router.SetBackgroundVolume(p.cfg.BackgroundVolume)
	}
	if p.cfg.MainAudio != before.MainAudio || p.cfg.BackgroundAudio != before.BackgroundAudio {
		p.attachAudioLocked()
		p.needLayout = true // max duration may change with the audio
	}

	if p.needLayout {
		return p.relayoutLocked()
	}
	return nil
}

// Config returns the live config snapshot. The pointer is shared with
// the engine; callers mutate it only through Update or interactions.
func (p *Player) Config() *scene.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Model returns the current line model.
func (p *Player) Model() *layout.LineModel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// MaxDuration returns the playback length in seconds.
func (p *Player) MaxDuration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxDuration
}

// Frame composes the frame at time t.
func (p *Player) Frame(t float64) (*image.RGBA, error) {
	p.mu.Lock()
	if p.needLayout {
		if err := p.relayoutLocked(); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
	cfg, model, comp, table := p.cfg, p.model, p.comp, p.table
	p.mu.Unlock()
	return comp.RenderFrame(t, cfg, model, table)
}

// Play starts interactive playback: the transport runs and display-rate
// ticks render preview frames until the end conditions hit.
func (p *Player) Play(ctx context.Context) {
	p.mu.Lock()
	if p.playCancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.playCancel = cancel
	p.playGen++
	gen := p.playGen
	router := p.router
	sched := clock.NewInteractive(clock.Config{
		MaxDuration: p.maxDuration,
		Start:       p.wallTime,
		Position: func() (float64, bool) {
			if router.HasMain() {
				return router.PlaybackPosition(), true
			}
			return 0, false
		},
		Ended: router.MainEnded,
	})
	p.mu.Unlock()

	router.Play()
	go func() {
		for tick := range sched.Run(ctx) {
			frame, err := p.Frame(tick.Time)
			if err != nil {
				p.log.Error().Err(err).Msg("frame render failed")
				continue
			}
			p.mu.Lock()
			if gen == p.playGen {
				p.wallTime = tick.Time
			}
			fn := p.onFrame
			p.mu.Unlock()
			if fn != nil {
				fn(frame, tick.Time)
			}
		}
		// Only this session's teardown may pause; a newer Play owns the
		// transport by now.
		p.mu.Lock()
		stale := gen != p.playGen
		p.mu.Unlock()
		if !stale {
			p.Pause()
		}
	}()
}

// Pause freezes playback in place.
func (p *Player) Pause() {
	p.mu.Lock()
	cancel := p.playCancel
	p.playCancel = nil
	router := p.router
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if router != nil {
		router.Pause()
	}
}

// Rewind pauses and moves the transport back to zero.
func (p *Player) Rewind() {
	p.Pause()
	p.mu.Lock()
	router := p.router
	p.wallTime = 0
	p.mu.Unlock()
	if router != nil {
		router.Rewind()
	}
}

// Playing reports whether interactive playback is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playCancel != nil
}

// Close tears everything down.
func (p *Player) Close() error {
	p.Pause()
	if _, err := p.StopRecording(); err != nil {
		p.log.Warn().Err(err).Msg("recording teardown failed")
	}
	p.mu.Lock()
	router := p.router
	p.router = nil
	p.mu.Unlock()
	if router != nil {
		return router.Close()
	}
	return nil
}
