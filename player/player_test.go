package player

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ByLCY/rotulus/audio"
	"github.com/ByLCY/rotulus/capture"
	"github.com/ByLCY/rotulus/layout"
	"github.com/ByLCY/rotulus/scene"
)

func writeLogoPNG(t *testing.T, dir string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	f, err := os.Create(filepath.Join(dir, "logo.png"))
	if err != nil {
		t.Fatalf("create logo: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode logo: %v", err)
	}
}

func testProject() *scene.Project {
	return &scene.Project{
		Config: &scene.Config{
			Aspect:          scene.Aspect1x1,
			Script:          "Good evening.\nTonight's top stories.",
			Font:            layout.Font{Family: "Body", Size: 48, LineHeight: 1.2},
			TextColor:       scene.Color{R: 255, G: 255, B: 255},
			BackgroundColor: scene.Color{R: 0, G: 0, B: 0},
			ScrollSpeed:     50,
			MainVolume:      1,
			Export:          scene.Export{FPS: 30, FileName: "show"},
		},
		Resources: scene.ResourceSet{
			Fonts: map[string]scene.FontResource{
				"Body": {Name: "Body", Src: "embed:GoRegular", BoldSrc: "embed:GoBold"},
			},
		},
	}
}

func newTestPlayer(t *testing.T, project *scene.Project) *Player {
	t.Helper()
	dir := t.TempDir()
	writeLogoPNG(t, dir)
	p := NewPlayer(dir, zerolog.Nop(),
		WithOutputDir(dir),
		WithMonitorSink(audio.NullSink{}),
		WithEncoderProber(&allEncoders{}),
		WithMuxCommand(func(capture.Codec, int, int, int) *exec.Cmd {
			return exec.Command("cat")
		}))
	if project.Config.Logo != nil || project.Config.WatermarkImage != nil {
		if project.Resources.Images == nil {
			project.Resources.Images = map[string]scene.MediaResource{}
		}
		project.Resources.Images["logo"] = scene.MediaResource{Name: "logo", Src: "logo.png"}
	}
	if err := p.LoadProject(project); err != nil {
		t.Fatalf("load project: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

type allEncoders struct{}

func (allEncoders) Supported(string) bool { return true }

type noEncoders struct{}

func (noEncoders) Supported(string) bool { return false }

func TestLoadProjectBuildsLayout(t *testing.T) {
	p := newTestPlayer(t, testProject())
	model := p.Model()
	if model == nil || model.LineCount() == 0 {
		t.Fatalf("expected a line model after load")
	}
	if p.MaxDuration() <= 0 {
		t.Fatalf("expected positive max duration, got %f", p.MaxDuration())
	}
}

func TestUpdateScriptForcesRelayout(t *testing.T) {
	p := newTestPlayer(t, testProject())
	before := p.Model()

	if err := p.Update(func(cfg *scene.Config) { cfg.TextColor = scene.Color{R: 1} }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Model() != before {
		t.Fatalf("a paint-only change must not rebuild the layout")
	}

	if err := p.Update(func(cfg *scene.Config) { cfg.Script = "Entirely new copy." }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Model() == before {
		t.Fatalf("a script change must rebuild the layout")
	}
}

func TestUpdateFontSizeForcesRelayout(t *testing.T) {
	p := newTestPlayer(t, testProject())
	before := p.Model()
	if err := p.Update(func(cfg *scene.Config) { cfg.Font.Size = 64 }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Model() == before {
		t.Fatalf("a font size change must rebuild the layout")
	}
}

func TestFrameRenders(t *testing.T) {
	p := newTestPlayer(t, testProject())
	frame, err := p.Frame(1.0)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if frame.Bounds().Dx() != 1080 || frame.Bounds().Dy() != 1080 {
		t.Fatalf("unexpected frame bounds %v", frame.Bounds())
	}
}

func TestDragMovesLogoAndNotifiesOncePerMove(t *testing.T) {
	project := testProject()
	project.Config.Logo = &scene.Logo{Image: "logo", X: 100, Y: 100, Scale: 1, Opacity: 1}
	p := newTestPlayer(t, project)

	notified := 0
	p.OnChange(func() { notified++ })
	ic := NewInteraction(p)

	if !ic.PointerDown(110, 110) {
		t.Fatalf("expected press inside the logo to grab it")
	}
	if notified != 0 {
		t.Fatalf("press alone must not notify, got %d", notified)
	}

	ic.PointerMove(130, 100)
	logo := p.Config().Logo
	if logo.X != 120 || logo.Y != 90 {
		t.Fatalf("expected logo at (120,90), got (%f,%f)", logo.X, logo.Y)
	}
	if notified != 1 {
		t.Fatalf("expected exactly one notification, got %d", notified)
	}

	// A move event without an actual delta stays silent.
	ic.PointerMove(130, 100)
	if notified != 1 {
		t.Fatalf("zero-delta move must not notify, got %d", notified)
	}
	ic.PointerUp()

	ic.PointerMove(200, 200)
	if logo.X != 120 || notified != 1 {
		t.Fatalf("released pointer must not drag")
	}
}

func TestPointerDownOutsideGrabsNothing(t *testing.T) {
	project := testProject()
	project.Config.Logo = &scene.Logo{Image: "logo", X: 100, Y: 100, Scale: 1, Opacity: 1}
	p := newTestPlayer(t, project)
	ic := NewInteraction(p)
	if ic.PointerDown(500, 500) {
		t.Fatalf("press outside every element must not grab")
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	p := newTestPlayer(t, testProject())
	if err := p.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	if !p.Recording() {
		t.Fatalf("expected active recording")
	}

	// let a few frames through
	time.Sleep(300 * time.Millisecond)

	path, err := p.StopRecording()
	if err != nil {
		t.Fatalf("stop recording: %v", err)
	}
	if filepath.Base(path) != "show.webm" {
		t.Fatalf("unexpected output name %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected recorded bytes in %s", path)
	}
	if p.Recording() {
		t.Fatalf("recording state must reset after stop")
	}
}

func TestStartRecordingWithoutEncodersRollsBack(t *testing.T) {
	dir := t.TempDir()
	p := NewPlayer(dir, zerolog.Nop(),
		WithMonitorSink(audio.NullSink{}),
		WithEncoderProber(noEncoders{}))
	if err := p.LoadProject(testProject()); err != nil {
		t.Fatalf("load project: %v", err)
	}
	defer p.Close()

	err := p.StartRecording(context.Background())
	if !errors.Is(err, capture.ErrEncoderUnavailable) {
		t.Fatalf("expected ErrEncoderUnavailable, got %v", err)
	}
	if p.Recording() || p.Playing() {
		t.Fatalf("failed negotiation must leave the player untouched")
	}
}

func TestPauseResumeContinuesFromPausedTime(t *testing.T) {
	p := newTestPlayer(t, testProject())
	var mu sync.Mutex
	var times []float64
	p.OnFrame(func(_ *image.RGBA, tm float64) {
		mu.Lock()
		times = append(times, tm)
		mu.Unlock()
	})

	p.Play(context.Background())
	time.Sleep(250 * time.Millisecond)
	p.Pause()

	mu.Lock()
	if len(times) == 0 {
		mu.Unlock()
		t.Fatalf("expected frames before pause")
	}
	pausedAt := times[len(times)-1]
	times = nil
	mu.Unlock()
	if pausedAt <= 0 {
		t.Fatalf("expected playback to advance before pause, got %f", pausedAt)
	}

	p.Play(context.Background())
	time.Sleep(150 * time.Millisecond)
	p.Pause()

	mu.Lock()
	defer mu.Unlock()
	if len(times) == 0 {
		t.Fatalf("expected frames after resume")
	}
	if first := times[0]; first < pausedAt {
		t.Fatalf("resume restarted the clock: paused at %f, resumed at %f", pausedAt, first)
	}
}

type stubMediaProber struct{}

func (stubMediaProber) Duration(string) (float64, error) { return 2.0, nil }

type stubMediaDecoder struct{}

func (stubMediaDecoder) DecodePCM(string) ([]float32, error) {
	return make([]float32, 9600), nil
}

func TestSwitchToMissingAudioDetaches(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "song.bin"), []byte{0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("write audio stub: %v", err)
	}
	project := testProject()
	project.Config.MainAudio = "song"
	project.Resources.Audio = map[string]scene.MediaResource{
		"song": {Name: "song", Src: "song.bin"},
	}
	p := NewPlayer(dir, zerolog.Nop(),
		WithOutputDir(dir),
		WithMonitorSink(audio.NullSink{}),
		WithEncoderProber(&allEncoders{}),
		WithMediaProber(stubMediaProber{}),
		WithMediaDecoder(stubMediaDecoder{}))
	if err := p.LoadProject(project); err != nil {
		t.Fatalf("load project: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	if !p.router.HasMain() {
		t.Fatalf("expected main audio attached after load")
	}

	if err := p.Update(func(cfg *scene.Config) { cfg.MainAudio = "ghost" }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.router.HasMain() {
		t.Fatalf("expected a missing clip to detach the main bus")
	}
}
