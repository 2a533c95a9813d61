package canvasrenderer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ByLCY/rotulus/layout"
	"github.com/ByLCY/rotulus/scene"
)

type mapImageSource map[string]image.Image

func (m mapImageSource) Image(name string) (image.Image, bool) {
	img, ok := m[name]
	return img, ok
}

func testResources() scene.ResourceSet {
	return scene.ResourceSet{
		Fonts: map[string]scene.FontResource{
			"Body": {Name: "Body", Src: "embed:GoRegular", BoldSrc: "embed:GoBold"},
		},
	}
}

func TestTextWidthPositiveAndMonotonic(t *testing.T) {
	c := NewCompositor(".", testResources())
	font := layout.Font{Family: "Body", Size: 48, LineHeight: 1.2}

	short, err := c.TextWidth("hi", font)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	long, err := c.TextWidth("hi there", font)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if short <= 0 {
		t.Fatalf("expected positive width, got %f", short)
	}
	if long <= short {
		t.Fatalf("expected longer text to be wider: %f vs %f", long, short)
	}
}

func TestTextWidthBoldDiffersFromRegular(t *testing.T) {
	c := NewCompositor(".", testResources())
	regular, err := c.TextWidth("broadcast", layout.Font{Family: "Body", Size: 48})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bold, err := c.TextWidth("broadcast", layout.Font{Family: "Body", Size: 48, Bold: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regular == bold {
		t.Fatalf("expected bold face to measure differently, both %f", regular)
	}
}

func TestTextWidthFallsBackOnUnknownFamily(t *testing.T) {
	c := NewCompositor(".", testResources())
	w, err := c.TextWidth("hello", layout.Font{Family: "NoSuchFamily", Size: 48})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w <= 0 {
		t.Fatalf("expected fallback face to measure text, got %f", w)
	}
}

// TestTickerShiftCoversBand 验证三份文本拷贝（shift 与 shift±loopWidth）
// 在任意相位下都能连续覆盖条带：相邻拷贝之间的间隔恒为 loopWidth。
func TestTickerShiftCoversBand(t *testing.T) {
	const (
		speed     = 120.0
		textWidth = 640.0
		gap       = 100.0
	)
	loop := textWidth + gap
	for _, tm := range []float64{0, 0.5, 3.7, 42.0, 1000.25} {
		shift := TickerShift(tm, speed, textWidth, gap)
		if shift < 0 || shift >= loop {
			t.Fatalf("shift out of range at t=%f: %f", tm, shift)
		}
	}
	// 相位按 loopWidth 周期循环
	a := TickerShift(1.0, speed, textWidth, gap)
	b := TickerShift(1.0+loop/speed, speed, textWidth, gap)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("expected shift to be periodic: %f vs %f", a, b)
	}
}

func TestTickerShiftZeroSpeed(t *testing.T) {
	if got := TickerShift(10, 0, 640, 100); got != 0 {
		t.Fatalf("expected zero shift for zero speed, got %f", got)
	}
}

func TestRenderFrameDimensionsAndBackground(t *testing.T) {
	c := NewCompositor(".", testResources())
	cfg := &scene.Config{
		Aspect:          scene.Aspect1x1,
		Font:            layout.Font{Family: "Body", Size: 48, LineHeight: 1.2},
		TextColor:       scene.Color{R: 255, G: 255, B: 255},
		BackgroundColor: scene.Color{R: 16, G: 32, B: 64},
		ScrollSpeed:     50,
	}

	frame, err := c.RenderFrame(0, cfg, nil, mapImageSource{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Bounds().Dx() != 1080 || frame.Bounds().Dy() != 1080 {
		t.Fatalf("unexpected frame size: %v", frame.Bounds())
	}
	r, g, b, _ := frame.At(540, 10).RGBA()
	got := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}
	if abs(int(got.R)-16) > 2 || abs(int(got.G)-32) > 2 || abs(int(got.B)-64) > 2 {
		t.Fatalf("expected background color near (16,32,64), got %v", got)
	}
}

func TestRenderFrameDrawsScrolledText(t *testing.T) {
	c := NewCompositor(".", testResources())
	cfg := &scene.Config{
		Aspect:          scene.Aspect16x9,
		Font:            layout.Font{Family: "Body", Size: 96, LineHeight: 1.2},
		TextColor:       scene.Color{R: 255, G: 255, B: 255},
		BackgroundColor: scene.Color{R: 0, G: 0, B: 0},
		ScrollSpeed:     100,
	}

	engine := layout.NewEngine(c)
	model, err := engine.Layout("HELLO STUDIO", cfg.Font, layout.MaxWidthFor(1920))
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}

	// t 选得足够大，让首行进入视口中部
	frame, err := c.RenderFrame(5, cfg, model, mapImageSource{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 黑底上出现非黑像素即说明正文被绘制
	found := false
	for y := 0; y < 1080 && !found; y += 4 {
		for x := 0; x < 1920 && !found; x += 4 {
			r, g, b, _ := frame.At(x, y).RGBA()
			if r>>8 > 40 || g>>8 > 40 || b>>8 > 40 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected scrolled text pixels on black background")
	}
}

func TestRenderFrameSkipsMissingImages(t *testing.T) {
	c := NewCompositor(".", testResources())
	cfg := &scene.Config{
		Aspect:          scene.Aspect16x9,
		Font:            layout.Font{Family: "Body", Size: 48, LineHeight: 1.2},
		BackgroundColor: scene.Color{R: 10, G: 10, B: 10},
		BackgroundImage: "missing",
		Logo:            &scene.Logo{Image: "also-missing", X: 20, Y: 20, Scale: 1, Opacity: 1},
		ScrollSpeed:     50,
	}
	if _, err := c.RenderFrame(0, cfg, nil, mapImageSource{}); err != nil {
		t.Fatalf("missing images should be skipped, got error: %v", err)
	}
}

func TestApplyOpacityScalesAlpha(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.SetRGBA(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	out := applyOpacity(src, 0.5)
	_, _, _, a := out.At(0, 0).RGBA()
	if got := int(a >> 8); abs(got-127) > 2 {
		t.Fatalf("expected alpha near 127, got %d", got)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
