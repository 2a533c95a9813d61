package player

import (
	"sync"

	"github.com/ByLCY/rotulus/layout"
	"github.com/ByLCY/rotulus/scene"
)

// target identifies which overlay element a drag is attached to.
type target int

const (
	targetNone target = iota
	targetLogo
	targetWatermarkImage
	targetWatermarkText
)

// InteractionController translates pointer events into overlay drags.
// Pressing grabs the topmost element under the pointer; moving shifts
// its anchor by the pointer delta and fires the change callback once per
// effective move. Pressing alone never notifies.
type InteractionController struct {
	player *Player

	mu     sync.Mutex
	active target
	lastX  float64
	lastY  float64
}

// NewInteraction creates a controller bound to p.
func NewInteraction(p *Player) *InteractionController {
	return &InteractionController{player: p}
}

// PointerDown starts a drag if an overlay element is under the pointer.
// It reports whether something was grabbed.
func (c *InteractionController) PointerDown(x, y float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = c.player.hitTest(x, y)
	c.lastX, c.lastY = x, y
	return c.active != targetNone
}

// PointerMove applies the pointer delta to the grabbed element.
func (c *InteractionController) PointerMove(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == targetNone {
		return
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	if dx == 0 && dy == 0 {
		return
	}
	c.player.moveTarget(c.active, dx, dy)
}

// PointerUp releases the drag.
func (c *InteractionController) PointerUp() {
	c.mu.Lock()
	c.active = targetNone
	c.mu.Unlock()
}

// hitTest picks the topmost overlay element at (x, y), matching the
// composition order: the logo sits above the watermarks, text above image.
func (p *Player) hitTest(x, y float64) target {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := p.cfg
	if cfg == nil {
		return targetNone
	}
	if l := cfg.Logo; l != nil && p.imageContainsLocked(l.Image, l.X, l.Y, l.Scale, x, y) {
		return targetLogo
	}
	if wm := cfg.WatermarkText; wm != nil && p.textContainsLocked(wm, x, y) {
		return targetWatermarkText
	}
	if wm := cfg.WatermarkImage; wm != nil && p.imageContainsLocked(wm.Image, wm.X, wm.Y, wm.Scale, x, y) {
		return targetWatermarkImage
	}
	return targetNone
}

func (p *Player) imageContainsLocked(name string, ox, oy, scale, x, y float64) bool {
	img, ok := p.table.Image(name)
	if !ok {
		return false
	}
	if scale <= 0 {
		scale = 1
	}
	w := float64(img.Bounds().Dx()) * scale
	h := float64(img.Bounds().Dy()) * scale
	return x >= ox && x < ox+w && y >= oy && y < oy+h
}

func (p *Player) textContainsLocked(wm *scene.WatermarkText, x, y float64) bool {
	font := layout.Font{Family: p.cfg.Font.Family, Size: wm.FontSize, LineHeight: 1}
	w, err := p.comp.TextWidth(wm.Text, font)
	if err != nil || w <= 0 {
		return false
	}
	return x >= wm.X && x < wm.X+w && y >= wm.Y && y < wm.Y+wm.FontSize
}

// moveTarget shifts the element anchor and fires the change callback.
func (p *Player) moveTarget(t target, dx, dy float64) {
	p.mu.Lock()
	switch {
	case t == targetLogo && p.cfg.Logo != nil:
		p.cfg.Logo.X += dx
		p.cfg.Logo.Y += dy
	case t == targetWatermarkImage && p.cfg.WatermarkImage != nil:
		p.cfg.WatermarkImage.X += dx
		p.cfg.WatermarkImage.Y += dy
	case t == targetWatermarkText && p.cfg.WatermarkText != nil:
		p.cfg.WatermarkText.X += dx
		p.cfg.WatermarkText.Y += dy
	default:
		p.mu.Unlock()
		return
	}
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
