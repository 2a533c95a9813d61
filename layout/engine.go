package layout

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// 横向安全边距：视口宽度两侧各留 5%。
const sideMarginRatio = 0.05

// MaxWidthFor 返回给定视口宽度下正文可用的最大行宽。
func MaxWidthFor(viewportWidth float64) float64 {
	return viewportWidth - 2*sideMarginRatio*viewportWidth
}

// Engine 将脚本文本折行为 LineModel。计算是确定性的、无副作用的，
// 并以 (script, family, size, bold, maxWidth) 为键做缓存。
type Engine struct {
	measurer Measurer

	mu   sync.Mutex
	memo map[string]*LineModel
}

// NewEngine 创建排版引擎。measurer 不能为空。
func NewEngine(m Measurer) *Engine {
	return &Engine{
		measurer: m,
		memo:     map[string]*LineModel{},
	}
}

// Layout 根据脚本、字体与最大行宽生成折行结果。
// 算法：去掉 Markdown 加粗标记；按显式换行拆成硬行；空硬行输出零片段 Line；
// 非空硬行按空白串分词后贪心装入，当一个非空白词放不下时在其之前强制换行；
// 单个词本身超过 maxWidth 时独占一行，绝不拆分。
func (e *Engine) Layout(script string, font Font, maxWidth float64) (*LineModel, error) {
	if e.measurer == nil {
		return nil, fmt.Errorf("layout: 缺少测量后端 Measurer")
	}
	key := memoKey(script, font, maxWidth)
	e.mu.Lock()
	if cached, ok := e.memo[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	model, err := e.build(script, font, maxWidth)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.memo[key] = model
	e.mu.Unlock()
	return model, nil
}

// Invalidate 清空缓存。配置中字体或画布尺寸变化后由上层调用。
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.memo = map[string]*LineModel{}
	e.mu.Unlock()
}

func (e *Engine) build(script string, font Font, maxWidth float64) (*LineModel, error) {
	text := StripBoldMarkers(script)
	hardLines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var lines []Line
	for _, hard := range hardLines {
		if hard == "" {
			lines = append(lines, Line{})
			continue
		}
		wrapped, err := e.wrapHardLine(hard, font, maxWidth)
		if err != nil {
			return nil, err
		}
		lines = append(lines, wrapped...)
	}

	return &LineModel{
		Lines:       lines,
		MaxWidth:    maxWidth,
		Font:        font,
		TotalHeight: float64(len(lines)) * font.Size * font.LineHeight,
	}, nil
}

// wrapHardLine 对单个硬行执行贪心折行。
func (e *Engine) wrapHardLine(hard string, font Font, maxWidth float64) ([]Line, error) {
	tokens := tokenize(hard)
	var lines []Line
	var current Line

	emit := func() {
		lines = append(lines, current)
		current = Line{}
	}
	appendSeg := func(text string, width float64) {
		current.Segments = append(current.Segments, Segment{Text: text, Width: width})
		current.Width += width
	}

	for _, token := range tokens {
		width, err := e.measurer.TextWidth(token, font)
		if err != nil {
			return nil, fmt.Errorf("测量文本宽度失败: %w", err)
		}
		ws := isWhitespaceToken(token)

		if current.Width+width > maxWidth && len(current.Segments) > 0 {
			// 行尾放不下：非空白词换到下一行，空白串直接丢弃（不留行首空白）。
			emit()
			if ws {
				continue
			}
		}
		if ws && len(current.Segments) == 0 {
			// 行首空白不参与排版
			continue
		}
		// 单词自身超宽时独占一行，不做词内拆分。
		appendSeg(token, width)
		if width > maxWidth {
			emit()
		}
	}
	if len(current.Segments) > 0 {
		emit()
	}
	if len(lines) == 0 {
		lines = append(lines, Line{})
	}
	return lines, nil
}

// StripBoldMarkers 去掉脚本中的 Markdown 加粗标记（**），保留其余字符。
func StripBoldMarkers(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

// tokenize 将一行文本拆成交替的词与空白串，空白串原样保留。
func tokenize(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func isWhitespaceToken(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return len(s) > 0
}

func memoKey(script string, font Font, maxWidth float64) string {
	return script + "\x00" + font.Family + "\x00" +
		strconv.FormatFloat(font.Size, 'g', -1, 64) + "\x00" +
		strconv.FormatBool(font.Bold) + "\x00" +
		strconv.FormatFloat(font.LineHeight, 'g', -1, 64) + "\x00" +
		strconv.FormatFloat(maxWidth, 'g', -1, 64)
}
