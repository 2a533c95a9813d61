package fonts

import (
	"fmt"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体表：embed:<name> 形式引用，字节数据来自 golang.org/x/image 的 Go 字体。
var builtin = map[string][]byte{
	"GoRegular": goregular.TTF,
	"GoBold":    gobold.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:GoRegular" 或直接 "GoRegular"。
func Load(name string) ([]byte, error) {
	clean := strings.TrimPrefix(name, "embed:")
	data, ok := builtin[clean]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败：未定义", clean)
	}
	return data, nil
}

// IsEmbedded 报告 src 是否指向内置字体。
func IsEmbedded(src string) bool {
	return strings.HasPrefix(src, "embed:")
}
