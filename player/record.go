package player

import (
	"context"
	"fmt"

	"github.com/ByLCY/rotulus/capture"
	"github.com/ByLCY/rotulus/clock"
)

// StartRecording negotiates a codec, rewinds the transport and starts
// the export pipeline: a frame-rate scheduler renders frames straight
// into the muxer while the capture bus feeds it audio. A failed
// negotiation leaves the player exactly as it was.
func (p *Player) StartRecording(ctx context.Context) error {
	p.mu.Lock()
	if p.recorder != nil {
		p.mu.Unlock()
		return fmt.Errorf("recording already in progress")
	}
	if p.cfg == nil {
		p.mu.Unlock()
		return fmt.Errorf("no project loaded")
	}
	codec, err := capture.Negotiate(p.prober)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	cfg := p.cfg
	rec := capture.NewRecorder(p.log, p.outDir, codec)
	if p.muxCommand != nil {
		rec.MuxCommand = p.muxCommand
	}
	width, height := cfg.Aspect.Dimensions()
	fps := cfg.Export.FPS
	if fps <= 0 {
		fps = 30
	}
	fileName := cfg.Export.FileName
	mute := cfg.Export.MuteOnExport
	maxDuration := p.maxDuration
	router := p.router
	p.mu.Unlock()

	// Recording always starts from the top with a settled transport.
	p.Rewind()

	hasPrimaryAudio := router.HasMain()
	if err := rec.Start(fileName, width, height, fps, hasPrimaryAudio, maxDuration); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.recorder = rec
	p.recordCancel = cancel
	p.recordDone = done
	p.mu.Unlock()

	if mute {
		router.SetMonitorMuted(true)
	}
	router.OnCaptureFrames(func(samples []float32) {
		if err := rec.WriteAudio(samples); err != nil {
			p.log.Warn().Err(err).Msg("capture audio write failed")
		}
	})

	sched := clock.NewExport(clock.Config{
		MaxDuration: maxDuration,
		Ended:       router.MainEnded,
	}, fps)

	router.Play()
	go func() {
		for tick := range sched.Run(ctx) {
			frame, err := p.Frame(tick.Time)
			if err != nil {
				p.log.Error().Err(err).Msg("export frame render failed")
				break
			}
			if err := rec.WriteFrame(frame); err != nil {
				p.log.Error().Err(err).Msg("export frame write failed")
				break
			}
		}
		close(done)
		if path, err := p.StopRecording(); err != nil {
			p.log.Error().Err(err).Msg("recording finalize failed")
		} else if path != "" {
			p.log.Info().Str("path", path).Msg("recording saved")
		}
	}()
	return nil
}

// StopRecording ends the active session and returns the finished file
// path. Stopping an idle player is a no-op.
func (p *Player) StopRecording() (string, error) {
	p.mu.Lock()
	rec := p.recorder
	cancel := p.recordCancel
	done := p.recordDone
	router := p.router
	p.recorder = nil
	p.recordCancel = nil
	p.recordDone = nil
	p.mu.Unlock()
	if rec == nil {
		return "", nil
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if router != nil {
		router.Pause()
		router.OnCaptureFrames(nil)
		router.SetMonitorMuted(false)
	}
	return rec.Stop()
}

// Recording reports whether an export session is active.
func (p *Player) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recorder != nil
}
