package layout

// Measurer 负责按给定字体测量一段文本的像素宽度。
// 帧合成器实现该接口，保证测量与最终绘制使用同一批字体面。
type Measurer interface {
	TextWidth(text string, font Font) (float64, error)
}
