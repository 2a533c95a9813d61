package scene

// 该文件定义渲染引擎消费的配置快照与资源描述。
// 配置由 DSL 构建，使用期间归属 Player，坐标一律为画布像素、左上角锚点。

import "github.com/ByLCY/rotulus/layout"

// Aspect 是画幅比例枚举，画布像素尺寸是它的纯函数。
type Aspect string

const (
	Aspect16x9 Aspect = "16:9"
	Aspect9x16 Aspect = "9:16"
	Aspect1x1  Aspect = "1:1"
	Aspect4x5  Aspect = "4:5"
)

// Dimensions 返回该比例对应的固定画布像素尺寸。
func (a Aspect) Dimensions() (width, height int) {
	switch a {
	case Aspect9x16:
		return 1080, 1920
	case Aspect1x1:
		return 1080, 1080
	case Aspect4x5:
		return 1080, 1350
	default: // 16:9
		return 1920, 1080
	}
}

// Valid 报告比例是否为四种预设之一。
func (a Aspect) Valid() bool {
	switch a {
	case Aspect16x9, Aspect9x16, Aspect1x1, Aspect4x5:
		return true
	}
	return false
}

// Layer 表示水印相对正文的合成层级。
type Layer string

const (
	LayerFront Layer = "front" // 在正文之后绘制
	LayerBack  Layer = "back"  // 在正文之前绘制
)

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// WatermarkImage 描述图片水印：资源名、位置、缩放、不透明度与层级。
type WatermarkImage struct {
	Image   string  `json:"image"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Scale   float64 `json:"scale"`
	Opacity float64 `json:"opacity"`
	Layer   Layer   `json:"layer"`
}

// WatermarkText 描述文字水印。
type WatermarkText struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"fontSize"`
	Color    Color   `json:"color"`
	Opacity  float64 `json:"opacity"`
	Layer    Layer   `json:"layer"`
}

// Logo 描述左上角锚点的角标图片。
type Logo struct {
	Image   string  `json:"image"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Scale   float64 `json:"scale"`
	Opacity float64 `json:"opacity"`
}

// Ticker 描述底部横向滚动的字幕条。
type Ticker struct {
	Text       string  `json:"text"`
	Speed      float64 `json:"speed"` // 像素/秒
	FontSize   float64 `json:"fontSize"`
	Background Color   `json:"background"`
	Accent     Color   `json:"accent"`
	Color      Color   `json:"color"`
}

// Export 保存导出设置。
type Export struct {
	FPS          int    `json:"fps"`
	MuteOnExport bool   `json:"muteOnExport"`
	FileName     string `json:"fileName"`
}

// Config 是一次渲染周期的不可变输入快照。
// 只有交互拖拽会原位修改其中的覆盖元素坐标字段。
type Config struct {
	Aspect    Aspect      `json:"aspect"`
	Script    string      `json:"script"`
	Font      layout.Font `json:"font"`
	TextAlign string      `json:"textAlign"` // left/center/right
	TextColor Color       `json:"textColor"`

	ScrollSpeed float64 `json:"scrollSpeed"` // 像素/秒
	AutoSpeed   bool    `json:"autoSpeed"`

	BackgroundColor Color  `json:"backgroundColor"`
	BackgroundImage string `json:"backgroundImage"` // 图片资源名，可为空

	WatermarkImage *WatermarkImage `json:"watermarkImage,omitempty"`
	WatermarkText  *WatermarkText  `json:"watermarkText,omitempty"`
	Logo           *Logo           `json:"logo,omitempty"`
	Ticker         *Ticker         `json:"ticker,omitempty"`

	MainAudio  string  `json:"mainAudio"` // 音频资源名，可为空
	MainVolume float64 `json:"mainVolume"`

	BackgroundAudio  string  `json:"backgroundAudio"`
	BackgroundVolume float64 `json:"backgroundVolume"`

	Export Export `json:"export"`
}

// Dimensions 返回画布像素尺寸（float64，便于几何计算）。
func (c *Config) Dimensions() (width, height float64) {
	w, h := c.Aspect.Dimensions()
	return float64(w), float64(h)
}

// FontResource 描述字体资源；src 可以是文件路径或 embed:GoRegular 形式。
type FontResource struct {
	Name    string `json:"name"`
	Src     string `json:"src"`
	BoldSrc string `json:"boldSrc"`
}

// MediaResource 记录图片或音频资源的来源路径。
type MediaResource struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

// ResourceSet 记录解析出的字体、颜色、图片与音频定义。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]MediaResource `json:"images"`
	Audio  map[string]MediaResource `json:"audio"`
}

// Meta 保存项目元信息。
type Meta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Keywords []string `json:"keywords"`
}

// Project 是构建结果：配置快照加资源与元信息。
type Project struct {
	Config    *Config     `json:"config"`
	Resources ResourceSet `json:"resources"`
	Meta      Meta        `json:"meta"`
}
