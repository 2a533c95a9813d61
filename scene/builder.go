package scene

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/rotulus/binding"
	"github.com/ByLCY/rotulus/dsl"
	"github.com/ByLCY/rotulus/layout"
)

// 配置缺省值。
const (
	defaultFontSize    = 48.0
	defaultLineHeight  = 1.2
	defaultScrollSpeed = 50.0
	defaultTickerSpeed = 100.0
	defaultTickerSize  = 28.0
	defaultFPS         = 30
)

// Build 根据 DSL AST 生成配置快照与资源集合。
// data 用于脚本文本的 ${path} 插值，可为 nil。
func Build(doc *dsl.Document, data any) (*Project, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}

	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	meta := collectMeta(doc)

	section := firstScene(doc)
	if section == nil {
		return nil, fmt.Errorf("文档中缺少 scene 段落")
	}
	cfg, err := buildConfig(section, res, data)
	if err != nil {
		return nil, err
	}

	return &Project{
		Config:    cfg,
		Resources: res,
		Meta:      meta,
	}, nil
}

func buildConfig(section *dsl.SceneSection, res ResourceSet, data any) (*Config, error) {
	aspect := Aspect(section.Spec.Aspect)
	if !aspect.Valid() {
		return nil, fmt.Errorf("暂不支持的画幅比例：%s", section.Spec.Aspect)
	}
	if section.Block == nil {
		return nil, fmt.Errorf("scene 段落缺少内容")
	}

	cfg := &Config{
		Aspect: aspect,
		Font: layout.Font{
			Family:     "Body",
			Size:       defaultFontSize,
			LineHeight: defaultLineHeight,
		},
		TextAlign:        "center",
		TextColor:        Color{R: 255, G: 255, B: 255},
		ScrollSpeed:      defaultScrollSpeed,
		BackgroundColor:  Color{},
		MainVolume:       1,
		BackgroundVolume: 1,
		Export:           Export{FPS: defaultFPS},
	}

	for _, stmt := range section.Block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		switch cmd.Name {
		case "script":
			cfg.Script = extractScript(cmd.Block, data)
		case "font":
			applyFont(cmd, cfg, res)
		case "scroll":
			applyScroll(cmd, cfg)
		case "background":
			_, attrs := parseArgs(cmd.Args, false)
			if v := attrs["color"]; v != "" {
				cfg.BackgroundColor = resolveColor(v, res, cfg.BackgroundColor)
			}
			if v := attrs["image"]; v != "" {
				cfg.BackgroundImage = v
			}
		case "watermark":
			cfg.WatermarkImage = parseWatermarkImage(cmd)
		case "watermark-text":
			cfg.WatermarkText = parseWatermarkText(cmd, res)
		case "logo":
			cfg.Logo = parseLogo(cmd)
		case "ticker":
			cfg.Ticker = parseTicker(cmd, res)
		case "audio":
			name, attrs := parseArgs(cmd.Args, true)
			cfg.MainAudio = name
			cfg.MainVolume = parseFloatAttr(attrs, "volume", 1)
		case "music":
			name, attrs := parseArgs(cmd.Args, true)
			cfg.BackgroundAudio = name
			cfg.BackgroundVolume = parseFloatAttr(attrs, "volume", 1)
		case "export":
			applyExport(cmd, cfg)
		default:
			// 其余命令暂未实现，忽略即可
		}
	}
	return cfg, nil
}

// extractScript 将 script 块内的字符串字面量按行拼接并做数据插值。
func extractScript(block *dsl.Block, data any) string {
	if block == nil {
		return ""
	}
	var lines []string
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			lines = append(lines, string(stmt.Text.Value))
		}
	}
	script := strings.Join(lines, "\n")
	if data != nil {
		script = binding.Interpolate(script, data)
	}
	return script
}

func applyFont(cmd *dsl.Command, cfg *Config, res ResourceSet) {
	name, attrs := parseArgs(cmd.Args, true)
	if name != "" {
		cfg.Font.Family = name
	}
	if v := attrs["size"]; v != "" {
		if px := layout.ParseLength(v).ToPx(); px > 0 {
			cfg.Font.Size = px
		}
	}
	if v := attrs["bold"]; v != "" {
		cfg.Font.Bold = v == "true"
	}
	if v := strings.TrimSpace(attrs["line-height"]); v != "" {
		factor := strings.TrimSuffix(v, "x")
		if f, err := strconv.ParseFloat(factor, 64); err == nil && f > 0 {
			cfg.Font.LineHeight = f
		}
	}
	if v := strings.ToLower(attrs["align"]); v != "" {
		if v == "start" {
			v = "left"
		}
		if v == "end" {
			v = "right"
		}
		if v == "left" || v == "center" || v == "right" {
			cfg.TextAlign = v
		}
	}
	if v := attrs["color"]; v != "" {
		cfg.TextColor = resolveColor(v, res, cfg.TextColor)
	}
}

func applyScroll(cmd *dsl.Command, cfg *Config) {
	_, attrs := parseArgs(cmd.Args, false)
	for _, arg := range cmd.Args {
		if arg.Value == "auto" {
			cfg.AutoSpeed = true
		}
	}
	if v := attrs["speed"]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ScrollSpeed = f
		}
	}
}

func applyExport(cmd *dsl.Command, cfg *Config) {
	_, attrs := parseArgs(cmd.Args, false)
	if v := attrs["fps"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Export.FPS = n
		}
	}
	if v := attrs["mute"]; v != "" {
		cfg.Export.MuteOnExport = v == "true"
	}
	if v := attrs["name"]; v != "" {
		cfg.Export.FileName = v
	}
}

func parseWatermarkImage(cmd *dsl.Command) *WatermarkImage {
	name, attrs := parseArgs(cmd.Args, true)
	if name == "" {
		name = attrs["image"]
	}
	if name == "" {
		return nil
	}
	wm := &WatermarkImage{
		Image:   name,
		X:       parseFloatAttr(attrs, "x", 0),
		Y:       parseFloatAttr(attrs, "y", 0),
		Scale:   parseFloatAttr(attrs, "scale", 1),
		Opacity: parseFloatAttr(attrs, "opacity", 1),
		Layer:   LayerBack,
	}
	if Layer(attrs["layer"]) == LayerFront {
		wm.Layer = LayerFront
	}
	return wm
}

func parseWatermarkText(cmd *dsl.Command, res ResourceSet) *WatermarkText {
	_, attrs := parseArgs(cmd.Args, false)
	text := attrs["text"]
	if text == "" {
		return nil
	}
	wm := &WatermarkText{
		Text:     text,
		X:        parseFloatAttr(attrs, "x", 0),
		Y:        parseFloatAttr(attrs, "y", 0),
		FontSize: sizeAttr(attrs, "size", 32),
		Color:    resolveColor(attrs["color"], res, Color{R: 255, G: 255, B: 255}),
		Opacity:  parseFloatAttr(attrs, "opacity", 1),
		Layer:    LayerBack,
	}
	if Layer(attrs["layer"]) == LayerFront {
		wm.Layer = LayerFront
	}
	return wm
}

func parseLogo(cmd *dsl.Command) *Logo {
	name, attrs := parseArgs(cmd.Args, true)
	if name == "" {
		name = attrs["image"]
	}
	if name == "" {
		return nil
	}
	return &Logo{
		Image:   name,
		X:       parseFloatAttr(attrs, "x", 0),
		Y:       parseFloatAttr(attrs, "y", 0),
		Scale:   parseFloatAttr(attrs, "scale", 1),
		Opacity: parseFloatAttr(attrs, "opacity", 1),
	}
}

func parseTicker(cmd *dsl.Command, res ResourceSet) *Ticker {
	_, attrs := parseArgs(cmd.Args, false)
	text := attrs["text"]
	if text == "" {
		return nil
	}
	return &Ticker{
		Text:       text,
		Speed:      parseFloatAttr(attrs, "speed", defaultTickerSpeed),
		FontSize:   sizeAttr(attrs, "size", defaultTickerSize),
		Background: resolveColor(attrs["background"], res, Color{R: 17, G: 17, B: 17}),
		Accent:     resolveColor(attrs["accent"], res, Color{R: 255, G: 59, B: 48}),
		Color:      resolveColor(attrs["color"], res, Color{R: 255, G: 255, B: 255}),
	}
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]MediaResource{},
		Audio:  map[string]MediaResource{},
	}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			switch stmt.Command.Name {
			case "font":
				font := parseFontResource(stmt.Command)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(stmt.Command)
				if name == "" || value == "" {
					continue
				}
				if c, err := parseColor(value); err == nil {
					res.Colors[name] = c
				}
			case "image":
				media := parseMediaResource(stmt.Command)
				if media.Name != "" {
					res.Images[media.Name] = media
				}
			case "audio":
				media := parseMediaResource(stmt.Command)
				if media.Name != "" {
					res.Audio[media.Name] = media
				}
			}
		}
	}

	if len(res.Fonts) == 0 {
		res.Fonts["Body"] = FontResource{
			Name:    "Body",
			Src:     "embed:GoRegular",
			BoldSrc: "embed:GoBold",
		}
	}
	return res, nil
}

func collectMeta(doc *dsl.Document) Meta {
	var meta Meta
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{Name: cmd.Args[0].Value}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil || stmt.Assignment.Value.String == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			font.Src = string(*stmt.Assignment.Value.String)
		case "bold-src":
			font.BoldSrc = string(*stmt.Assignment.Value.String)
		}
	}
	return font
}

func parseMediaResource(cmd *dsl.Command) MediaResource {
	if len(cmd.Args) == 0 {
		return MediaResource{}
	}
	media := MediaResource{Name: cmd.Args[0].Value}
	if cmd.Block == nil {
		return media
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil || stmt.Assignment.Value.String == nil {
			continue
		}
		if stmt.Assignment.Key == "src" {
			media.Src = string(*stmt.Assignment.Value.String)
		}
	}
	return media
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

func firstScene(doc *dsl.Document) *dsl.SceneSection {
	for _, section := range doc.Sections {
		if section.Scene != nil {
			return section.Scene
		}
	}
	return nil
}

func parseArgs(args []*dsl.Lexeme, allowName bool) (string, map[string]string) {
	result := map[string]string{}
	if len(args) == 0 {
		return "", result
	}

	cursor := 0
	var name string
	if allowName && args[0].Type == "Ident" && !isKnownKey(args[0].Value) {
		name = args[0].Value
		cursor = 1
	}

	for cursor < len(args)-1 {
		key := args[cursor].Value
		val := args[cursor+1].Value
		result[key] = val
		cursor += 2
	}

	return name, result
}

// isKnownKey 防止把属性键误认为资源名（例如 `watermark image wm ...`）。
func isKnownKey(v string) bool {
	switch v {
	case "x", "y", "scale", "opacity", "layer", "size", "bold", "align",
		"color", "speed", "volume", "text", "image", "fps", "mute", "name",
		"line-height", "background", "accent", "src":
		return true
	}
	return false
}

func parseFloatAttr(attrs map[string]string, key string, def float64) float64 {
	v, ok := attrs[key]
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func sizeAttr(attrs map[string]string, key string, def float64) float64 {
	v, ok := attrs[key]
	if !ok || v == "" {
		return def
	}
	if px := layout.ParseLength(v).ToPx(); px > 0 {
		return px
	}
	return def
}

func resolveColor(value string, res ResourceSet, def Color) Color {
	if value == "" {
		return def
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return def
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		r := strings.Repeat(string(value[0]), 2)
		g := strings.Repeat(string(value[1]), 2)
		b := strings.Repeat(string(value[2]), 2)
		return Color{R: mustHex(r), G: mustHex(g), B: mustHex(b)}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
