package service

import (
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`\$([A-Za-z][A-Za-z.\-]*)`)

// ExtractSymbols 提取消息中以 $ 开头的代码，保持出现顺序和大小写
// 例: "Check $GME and $BRK.B now" -> [GME BRK.B]
// 句末的 '.'/'-' 不属于代码，重复出现的代码只保留第一次
func ExtractSymbols(text string) []string {
	matches := symbolPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		sym := strings.TrimRight(m[1], ".-")
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
