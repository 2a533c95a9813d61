package layout

// 速度与时长解析。滚动速度单位为像素/秒。

// MinAutoSpeed 是自动速度的下限（像素/秒）。
const MinAutoSpeed = 10.0

// ResolveSpeed 解析生效滚动速度。
// 开启自动速度且主音轨时长已知时，速度 = (文本总高+视口高)/音频时长，
// 并钳制在 MinAutoSpeed 之上；否则使用显式配置值。
func ResolveSpeed(auto bool, configured, totalTextHeight, viewportHeight, audioDuration float64) float64 {
	if auto && audioDuration > 0 {
		speed := (totalTextHeight + viewportHeight) / audioDuration
		if speed < MinAutoSpeed {
			speed = MinAutoSpeed
		}
		return speed
	}
	return configured
}

// MaxDuration 解析播放/导出的最大时长（秒）。
// 主音轨可解码时以其时长为准，与滚动速度无关；
// 否则为 (文本总高+视口高)/生效速度。
func MaxDuration(audioDuration float64, totalTextHeight, viewportHeight, speed float64) float64 {
	if audioDuration > 0 {
		return audioDuration
	}
	if speed <= 0 {
		return 0
	}
	return (totalTextHeight + viewportHeight) / speed
}
