package scene

import (
	"testing"

	"github.com/ByLCY/rotulus/dsl"
)

func buildProject(t *testing.T, src string, data any) *Project {
	t.Helper()
	doc, err := dsl.ParseString(src)
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	project, err := Build(doc, data)
	if err != nil {
		t.Fatalf("构建配置失败: %v", err)
	}
	return project
}

const sceneDSL = `
prompter Demo v1 {
  resources {
    font Body { src: "embed:GoRegular" }
    audio main { src: "voice.wav" }
    audio bgm { src: "music.mp3" }
    image bg { src: "studio.jpg" }
    color Accent = #FF3B30
  }

  scene 9:16 {
    font Body size 64px bold true line-height 1.4x align left color #EEEEEE
    scroll auto
    background color #101010 image bg
    script {
      "Hello ${presenter.name}"
      ""
      "Second block"
    }
    watermark bg x 40 y 60 scale 0.5 opacity 0.3 layer front
    watermark-text text "DRAFT" x 10 y 20 size 32px opacity 0.5 layer back
    logo bg x 100 y 100 scale 0.25 opacity 0.9
    ticker text "rolling caption" speed 140 size 24px accent Accent
    audio main volume 0.8
    music bgm volume 0.4
    export fps 60 mute true name "take-one"
  }
}
`

// TestBuildConfig 覆盖 DSL → 配置快照的完整转换与缺省值。
func TestBuildConfig(t *testing.T) {
	data := map[string]any{"presenter": map[string]any{"name": "Ada"}}
	project := buildProject(t, sceneDSL, data)
	cfg := project.Config

	if cfg.Aspect != Aspect9x16 {
		t.Fatalf("画幅错误: %s", cfg.Aspect)
	}
	if w, h := cfg.Aspect.Dimensions(); w != 1080 || h != 1920 {
		t.Fatalf("9:16 画布尺寸期望 1080×1920，实际 %d×%d", w, h)
	}
	if cfg.Font.Family != "Body" || cfg.Font.Size != 64 || !cfg.Font.Bold || cfg.Font.LineHeight != 1.4 {
		t.Fatalf("字体解析错误: %#v", cfg.Font)
	}
	if cfg.TextAlign != "left" {
		t.Fatalf("对齐解析错误: %s", cfg.TextAlign)
	}
	if !cfg.AutoSpeed {
		t.Fatalf("应开启自动速度")
	}
	if cfg.Script[:9] != "Hello Ada" {
		t.Fatalf("脚本插值失败: %q", cfg.Script)
	}
	if cfg.BackgroundImage != "bg" {
		t.Fatalf("背景图解析错误: %q", cfg.BackgroundImage)
	}

	if cfg.WatermarkImage == nil || cfg.WatermarkImage.Layer != LayerFront || cfg.WatermarkImage.Scale != 0.5 {
		t.Fatalf("图片水印解析错误: %#v", cfg.WatermarkImage)
	}
	if cfg.WatermarkText == nil || cfg.WatermarkText.Text != "DRAFT" || cfg.WatermarkText.Layer != LayerBack {
		t.Fatalf("文字水印解析错误: %#v", cfg.WatermarkText)
	}
	if cfg.Logo == nil || cfg.Logo.X != 100 || cfg.Logo.Opacity != 0.9 {
		t.Fatalf("角标解析错误: %#v", cfg.Logo)
	}
	if cfg.Ticker == nil || cfg.Ticker.Speed != 140 {
		t.Fatalf("字幕条解析错误: %#v", cfg.Ticker)
	}
	// accent 引用 color 资源
	if cfg.Ticker.Accent != (Color{R: 0xFF, G: 0x3B, B: 0x30}) {
		t.Fatalf("字幕条强调色未解析资源: %#v", cfg.Ticker.Accent)
	}

	if cfg.MainAudio != "main" || cfg.MainVolume != 0.8 {
		t.Fatalf("主音轨解析错误: %q %g", cfg.MainAudio, cfg.MainVolume)
	}
	if cfg.BackgroundAudio != "bgm" || cfg.BackgroundVolume != 0.4 {
		t.Fatalf("背景音乐解析错误: %q %g", cfg.BackgroundAudio, cfg.BackgroundVolume)
	}
	if cfg.Export.FPS != 60 || !cfg.Export.MuteOnExport || cfg.Export.FileName != "take-one" {
		t.Fatalf("导出设置解析错误: %#v", cfg.Export)
	}

	if len(project.Resources.Audio) != 2 || project.Resources.Audio["main"].Src != "voice.wav" {
		t.Fatalf("音频资源解析错误: %#v", project.Resources.Audio)
	}
}

// TestBuildDefaults 验证最小文档得到合理缺省值。
func TestBuildDefaults(t *testing.T) {
	project := buildProject(t, `prompter Min v1 { scene 16:9 { script { "only line" } } }`, nil)
	cfg := project.Config

	if w, h := cfg.Aspect.Dimensions(); w != 1920 || h != 1080 {
		t.Fatalf("16:9 画布尺寸期望 1920×1080，实际 %d×%d", w, h)
	}
	if cfg.Font.Size != defaultFontSize || cfg.Font.LineHeight != defaultLineHeight {
		t.Fatalf("字体缺省值错误: %#v", cfg.Font)
	}
	if cfg.ScrollSpeed != defaultScrollSpeed || cfg.AutoSpeed {
		t.Fatalf("滚动缺省值错误: %g auto=%v", cfg.ScrollSpeed, cfg.AutoSpeed)
	}
	if cfg.MainVolume != 1 || cfg.BackgroundVolume != 1 {
		t.Fatalf("音量缺省值错误")
	}
	if cfg.Export.FPS != defaultFPS || cfg.Export.MuteOnExport {
		t.Fatalf("导出缺省值错误: %#v", cfg.Export)
	}
	// 未声明字体资源时注入内置 Body
	if project.Resources.Fonts["Body"].Src != "embed:GoRegular" {
		t.Fatalf("缺少内置 Body 字体资源: %#v", project.Resources.Fonts)
	}
}

// TestBuildRejectsUnknownAspect 验证非预设画幅比例报错。
func TestBuildRejectsUnknownAspect(t *testing.T) {
	doc, err := dsl.ParseString(`prompter Bad v1 { scene 21:9 { } }`)
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	if _, err := Build(doc, nil); err == nil {
		t.Fatalf("期望非法画幅比例报错")
	}
}
