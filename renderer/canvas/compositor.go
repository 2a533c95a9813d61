package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/rotulus/fonts"
	"github.com/ByLCY/rotulus/layout"
	"github.com/ByLCY/rotulus/renderer"
	"github.com/ByLCY/rotulus/scene"
)

const (
	// 正文左右留白占画布宽度的比例，与排版引擎的可用宽度一致
	sideMarginRatio = 0.05
	// 正文阴影偏移（像素）
	shadowOffset = 2.0
	// 字幕条文本循环之间的固定间隔（像素）
	tickerGap = 100.0
	// 字幕条顶部强调线高度（像素）
	tickerAccentHeight = 4.0
)

// Compositor 基于 github.com/tdewolff/canvas 合成单帧画面。
// 画布单位即像素，左上角为原点；字体系统使用 pt，在边界做 px↔pt 换算。
// 同一个实例同时充当排版引擎的测量器，保证换行宽度与绘制宽度出自同一套字体面。
type Compositor struct {
	baseDir   string
	resources scene.ResourceSet

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily
}

var (
	_ renderer.FrameRenderer = (*Compositor)(nil)
	_ layout.Measurer        = (*Compositor)(nil)
)

type fontFamilyEntry struct {
	family  *canvas.FontFamily
	hasBold bool
}

// NewCompositor 创建合成器；baseDir 用于解析路径型字体资源。
func NewCompositor(baseDir string, resources scene.ResourceSet) *Compositor {
	return &Compositor{
		baseDir:      baseDir,
		resources:    resources,
		fontFamilies: map[string]*fontFamilyEntry{},
	}
}

// TextWidth 实现 layout.Measurer，返回文本按给定字体绘制时的像素宽度。
func (c *Compositor) TextWidth(text string, font layout.Font) (float64, error) {
	face, err := c.fontFace(font.Family, font.Bold, font.Size, scene.Color{}, 1)
	if err != nil {
		return 0, err
	}
	return face.TextWidth(text), nil
}

// RenderFrame 在时间点 t（秒）合成一帧并栅格化为 RGBA 位图。
// 绘制顺序固定：背景色、背景图、后层水印、滚动正文、前层水印、角标、字幕条。
func (c *Compositor) RenderFrame(t float64, cfg *scene.Config, model *layout.LineModel, images renderer.ImageSource) (*image.RGBA, error) {
	if cfg == nil {
		return nil, fmt.Errorf("渲染配置为空")
	}
	w, h := cfg.Dimensions()

	cv := canvas.New(w, h)
	ctx := canvas.NewContext(cv)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	// 背景色铺满整帧
	ctx.SetFillColor(colorFromScene(cfg.BackgroundColor, 1))
	ctx.SetStrokeColor(canvas.Transparent)
	ctx.DrawPath(0, 0, canvas.Rectangle(w, h))

	if cfg.BackgroundImage != "" {
		if img, ok := images.Image(cfg.BackgroundImage); ok {
			drawCoverImage(ctx, img, w, h)
		}
	}

	if err := c.drawWatermarks(ctx, cfg, images, scene.LayerBack); err != nil {
		return nil, err
	}
	if model != nil {
		if err := c.drawScript(ctx, t, cfg, model); err != nil {
			return nil, err
		}
	}
	if err := c.drawWatermarks(ctx, cfg, images, scene.LayerFront); err != nil {
		return nil, err
	}
	if cfg.Logo != nil && cfg.Logo.Image != "" {
		if img, ok := images.Image(cfg.Logo.Image); ok {
			drawScaledImage(ctx, img, cfg.Logo.X, cfg.Logo.Y, cfg.Logo.Scale, cfg.Logo.Opacity)
		}
	}
	if cfg.Ticker != nil && cfg.Ticker.Text != "" {
		if err := c.drawTicker(ctx, t, cfg, w, h); err != nil {
			return nil, err
		}
	}

	return rasterizer.Draw(cv, canvas.DPMM(1.0), canvas.DefaultColorSpace), nil
}

// drawScript 绘制滚动正文。行模型的纵向偏移随时间线性推进：
// t=0 时第一行位于视口底部，之后整体以 ScrollSpeed 像素/秒上移。
func (c *Compositor) drawScript(ctx *canvas.Context, t float64, cfg *scene.Config, model *layout.LineModel) error {
	w, h := cfg.Dimensions()
	face, err := c.fontFace(cfg.Font.Family, cfg.Font.Bold, cfg.Font.Size, cfg.TextColor, 1)
	if err != nil {
		return err
	}
	shadowFace, err := c.fontFace(cfg.Font.Family, cfg.Font.Bold, cfg.Font.Size, scene.Color{}, 0.6)
	if err != nil {
		return err
	}

	offsetY := h - t*cfg.ScrollSpeed
	lineHeight := cfg.Font.Size * cfg.Font.LineHeight
	ascent := face.Metrics().Ascent
	leftPad := w * sideMarginRatio

	for i, line := range model.Lines {
		top := offsetY + model.LineTop(i)
		if top+lineHeight < 0 || top > h {
			continue // 行完全在视口外
		}
		content := lineText(line)
		if content == "" {
			continue
		}

		var x float64
		switch cfg.TextAlign {
		case "center":
			x = (w - line.Width) / 2
		case "right":
			x = w - leftPad - line.Width
		default:
			x = leftPad
		}
		baseline := top + ascent

		ctx.DrawText(x+shadowOffset, baseline+shadowOffset, canvas.NewTextLine(shadowFace, content, canvas.Left))
		ctx.DrawText(x, baseline, canvas.NewTextLine(face, content, canvas.Left))
	}
	return nil
}

func (c *Compositor) drawWatermarks(ctx *canvas.Context, cfg *scene.Config, images renderer.ImageSource, layer scene.Layer) error {
	if wm := cfg.WatermarkImage; wm != nil && wm.Layer == layer && wm.Image != "" {
		if img, ok := images.Image(wm.Image); ok {
			drawScaledImage(ctx, img, wm.X, wm.Y, wm.Scale, wm.Opacity)
		}
	}
	if wm := cfg.WatermarkText; wm != nil && wm.Layer == layer && wm.Text != "" {
		face, err := c.fontFace(cfg.Font.Family, false, wm.FontSize, wm.Color, wm.Opacity)
		if err != nil {
			return err
		}
		baseline := wm.Y + face.Metrics().Ascent
		ctx.DrawText(wm.X, baseline, canvas.NewTextLine(face, wm.Text, canvas.Left))
	}
	return nil
}

// drawTicker 绘制底部字幕条：背景带、顶部强调线与循环滚动的文本。
// 文本画三份（shift 与 shift±loopWidth），保证任意相位下条带被完整覆盖。
func (c *Compositor) drawTicker(ctx *canvas.Context, t float64, cfg *scene.Config, w, h float64) error {
	tk := cfg.Ticker
	face, err := c.fontFace(cfg.Font.Family, false, tk.FontSize, tk.Color, 1)
	if err != nil {
		return err
	}
	textWidth := face.TextWidth(tk.Text)
	if textWidth <= 0 {
		return nil
	}

	bandHeight := tk.FontSize * 2
	bandTop := h - bandHeight

	ctx.SetFillColor(colorFromScene(tk.Background, 1))
	ctx.SetStrokeColor(canvas.Transparent)
	ctx.DrawPath(0, bandTop, canvas.Rectangle(w, bandHeight))
	ctx.SetFillColor(colorFromScene(tk.Accent, 1))
	ctx.DrawPath(0, bandTop, canvas.Rectangle(w, tickerAccentHeight))

	loopWidth := textWidth + tickerGap
	shift := TickerShift(t, tk.Speed, textWidth, tickerGap)
	baseline := bandTop + bandHeight/2 + face.Metrics().XHeight/2
	for _, dx := range []float64{-loopWidth, 0, loopWidth} {
		x := w - shift + dx
		if x+textWidth < 0 || x > w {
			continue
		}
		ctx.DrawText(x, baseline, canvas.NewTextLine(face, tk.Text, canvas.Left))
	}
	return nil
}

// TickerShift 返回时间 t 时字幕文本相对入场边缘的偏移，按循环宽度取模。
func TickerShift(t, speed, textWidth, gap float64) float64 {
	loop := textWidth + gap
	if loop <= 0 || speed <= 0 {
		return 0
	}
	return math.Mod(t*speed, loop)
}

// drawCoverImage 按 cover 模式绘制背景图：等比放大至恰好铺满画布并居中裁切。
func drawCoverImage(ctx *canvas.Context, img image.Image, w, h float64) {
	iw := float64(img.Bounds().Dx())
	ih := float64(img.Bounds().Dy())
	if iw <= 0 || ih <= 0 {
		return
	}
	scale := math.Max(w/iw, h/ih)
	x := (w - iw*scale) / 2
	y := (h - ih*scale) / 2
	ctx.DrawImage(x, y, img, canvas.DPMM(1.0/scale))
}

// drawScaledImage 以左上角锚点绘制图片，scale=1 时为原始像素尺寸。
func drawScaledImage(ctx *canvas.Context, img image.Image, x, y, scale, opacity float64) {
	if scale <= 0 {
		scale = 1
	}
	if opacity < 1 {
		img = applyOpacity(img, opacity)
	}
	ctx.DrawImage(x, y, img, canvas.DPMM(1.0/scale))
}

// applyOpacity 返回按统一不透明度衰减后的图像副本。
func applyOpacity(src image.Image, opacity float64) image.Image {
	if opacity >= 1 {
		return src
	}
	if opacity < 0 {
		opacity = 0
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, b, src, b.Min, mask, image.Point{}, draw.Over)
	return dst
}

func lineText(line layout.Line) string {
	var b strings.Builder
	for _, seg := range line.Segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

func (c *Compositor) fontFace(family string, bold bool, sizePx float64, col scene.Color, opacity float64) (*canvas.FontFace, error) {
	entry, err := c.ensureFontFamily(family)
	if err != nil {
		return nil, err
	}
	style := canvas.FontRegular
	if bold && entry.hasBold {
		style = canvas.FontBold
	}
	// 字体面尺寸按 pt 创建，px→pt 在此边界换算
	return entry.family.Face(sizePx*layout.FacePtPerPx, colorFromScene(col, opacity), style, canvas.FontNormal), nil
}

func (c *Compositor) ensureFontFamily(name string) (*fontFamilyEntry, error) {
	c.fontMu.Lock()
	defer c.fontMu.Unlock()

	if entry, ok := c.fontFamilies[name]; ok {
		return entry, nil
	}

	res, ok := c.resources.Fonts[name]
	if !ok {
		fallback, err := c.fallback()
		if err != nil {
			return nil, fmt.Errorf("找不到字体资源 %s: %w", name, err)
		}
		entry := &fontFamilyEntry{family: fallback}
		c.fontFamilies[name] = entry
		return entry, nil
	}

	family := canvas.NewFontFamily(name)
	data, err := c.loadFontBytes(res.Src)
	if err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", name, err)
	}
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("解析字体 %s 失败: %w", name, err)
	}

	entry := &fontFamilyEntry{family: family}
	if res.BoldSrc != "" {
		boldData, err := c.loadFontBytes(res.BoldSrc)
		if err != nil {
			return nil, fmt.Errorf("加载粗体字体 %s 失败: %w", name, err)
		}
		if err := family.LoadFont(boldData, 0, canvas.FontBold); err != nil {
			return nil, fmt.Errorf("解析粗体字体 %s 失败: %w", name, err)
		}
		entry.hasBold = true
	}
	c.fontFamilies[name] = entry
	return entry, nil
}

func (c *Compositor) loadFontBytes(src string) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("字体缺少 src")
	}
	if fonts.IsEmbedded(src) {
		return fonts.Load(src)
	}
	path := src
	if !filepath.IsAbs(path) {
		if c.baseDir == "" {
			return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 embed:）", src)
		}
		path = filepath.Join(c.baseDir, path)
	}
	return os.ReadFile(path)
}

func (c *Compositor) fallback() (*canvas.FontFamily, error) {
	if c.fallbackFamily != nil {
		return c.fallbackFamily, nil
	}
	data, err := fonts.Load("GoRegular")
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("rotulus-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	c.fallbackFamily = family
	return family, nil
}

func colorFromScene(c scene.Color, opacity float64) color.Color {
	if opacity > 1 {
		opacity = 1
	}
	if opacity < 0 {
		opacity = 0
	}
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, opacity)
}
