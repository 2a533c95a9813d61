package renderer

import (
	"image"

	"github.com/ByLCY/rotulus/layout"
	"github.com/ByLCY/rotulus/scene"
)

// ImageSource 将图片资源名解析为已解码的图像句柄。
// 由 Player 的资源表实现；资源缺失时返回 false，合成器跳过该元素。
type ImageSource interface {
	Image(name string) (image.Image, bool)
}

// FrameRenderer 在给定时间点合成一帧画面。
// 返回的位图由调用方（预览或捕获管线）消费。
type FrameRenderer interface {
	RenderFrame(time float64, cfg *scene.Config, model *layout.LineModel, images ImageSource) (*image.RGBA, error)
}
