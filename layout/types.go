package layout

// 该文件定义排版结果的数据结构，供布局计算、帧合成与调试 JSON 共用。

// Font 描述排版与绘制共用的字体参数。
// 布局阶段测量字宽时必须使用与绘制阶段完全一致的 Family/Size/Bold。
type Font struct {
	Family     string  `json:"family"`
	Size       float64 `json:"size"` // 像素
	Bold       bool    `json:"bold"`
	LineHeight float64 `json:"lineHeight"` // 行高倍数，例如 1.2
}

// Segment 表示一行中的连续片段（词或空白串）及其测量宽度。
type Segment struct {
	Text  string  `json:"text"`
	Width float64 `json:"width"`
}

// Line 表示折行后的一行。空源行对应零片段、零宽度的 Line，
// 以保留原文中的空行间距。
type Line struct {
	Segments []Segment `json:"segments"`
	Width    float64   `json:"width"`
}

// LineModel 是 Layout 的完整输出：有序行序列与派生的几何信息。
type LineModel struct {
	Lines       []Line  `json:"lines"`
	MaxWidth    float64 `json:"maxWidth"`
	Font        Font    `json:"font"`
	TotalHeight float64 `json:"totalHeight"` // 行数 × 字号 × 行高倍数
}

// LineCount 返回行数（含空行）。
func (m *LineModel) LineCount() int {
	if m == nil {
		return 0
	}
	return len(m.Lines)
}

// LineTop 返回第 i 行的顶部纵向偏移（相对文本块顶部，像素）。
func (m *LineModel) LineTop(i int) float64 {
	return float64(i) * m.Font.Size * m.Font.LineHeight
}
