package layout

import (
	"math"
	"testing"
)

// TestResolveSpeedAuto 对应场景：音频 10s、文本总高 2000、视口 1080，
// 自动速度 = (2000+1080)/10 = 308 px/s。
func TestResolveSpeedAuto(t *testing.T) {
	got := ResolveSpeed(true, 50, 2000, 1080, 10)
	if math.Abs(got-308) > 1e-9 {
		t.Fatalf("自动速度期望 308，实际 %g", got)
	}
}

// TestResolveSpeedFloor 验证自动速度不会低于 10 px/s 下限。
func TestResolveSpeedFloor(t *testing.T) {
	// 原始计算值 (100+100)/60 ≈ 3.3，应被钳制到下限
	got := ResolveSpeed(true, 50, 100, 100, 60)
	if got != MinAutoSpeed {
		t.Fatalf("自动速度应钳制为 %g，实际 %g", MinAutoSpeed, got)
	}
}

// TestResolveSpeedExplicit 验证未开启自动速度时使用显式配置值。
func TestResolveSpeedExplicit(t *testing.T) {
	if got := ResolveSpeed(false, 42, 2000, 1080, 10); got != 42 {
		t.Fatalf("显式速度期望 42，实际 %g", got)
	}
}

// TestMaxDurationWithAudio 验证主音轨时长已知时 maxDuration == 音轨时长，
// 与滚动速度设置无关。
func TestMaxDurationWithAudio(t *testing.T) {
	for _, speed := range []float64{1, 50, 10000} {
		if got := MaxDuration(10, 2000, 1080, speed); got != 10 {
			t.Fatalf("speed=%g 时 maxDuration 期望 10，实际 %g", speed, got)
		}
	}
}

// TestMaxDurationWithoutAudio 验证无主音轨时
// maxDuration × 速度 ≈ 文本总高 + 视口高。
func TestMaxDurationWithoutAudio(t *testing.T) {
	totalH, viewportH, speed := 2000.0, 1080.0, 47.0
	got := MaxDuration(0, totalH, viewportH, speed)
	if diff := math.Abs(got*speed - (totalH + viewportH)); diff > 1e-6 {
		t.Fatalf("maxDuration×speed 期望 %g，实际 %g（差 %g）", totalH+viewportH, got*speed, diff)
	}
}

// TestMaxDurationScenario16x9 对应场景：1920×1080、无音频、两行脚本、速度 50。
func TestMaxDurationScenario16x9(t *testing.T) {
	font := Font{Family: "Body", Size: 48, LineHeight: 1.2}
	e := NewEngine(&stubMeasurer{})
	model, err := e.Layout("Hello\nWorld", font, MaxWidthFor(1920))
	if err != nil {
		t.Fatalf("Layout 失败: %v", err)
	}
	lineHeight := font.Size * font.LineHeight
	want := (2*lineHeight + 1080) / 50
	got := MaxDuration(0, model.TotalHeight, 1080, 50)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("maxDuration 期望 %g，实际 %g", want, got)
	}
}
