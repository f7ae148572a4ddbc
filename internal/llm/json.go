package llm

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformedResponse LLM返回的内容无法解析为期望的JSON结构
var ErrMalformedResponse = errors.New("LLM响应不是合法的JSON")

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// CleanResponseText 清理LLM原始输出：去除BOM头并替换非法UTF-8字节
func CleanResponseText(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.ToValidUTF8(text, "")
}

// ExtractJSON 从LLM响应文本中提取第一个完整的JSON对象。
// 优先匹配 ```json ... ``` 代码块，匹配不到时按花括号层级扫描回退。
// 未找到时返回空字符串。
func ExtractJSON(text string) string {
	text = CleanResponseText(text)

	matches := jsonFenceRe.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	// 查找匹配的}
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inStr:
			escaped = true
		case c == '"':
			inStr = !inStr
		case c == '{' && !inStr:
			level++
		case c == '}' && !inStr:
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

// SanitizeJSON 遍历 src，将位于字符串字面量内部但并非真正结束的双引号改写为 \"，
// 以保证整个 JSON 在 Go 端能够正常反序列化。
// 通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该 " 是否为字符串的结束。
// 反斜杠转义逻辑正常处理 \\ 和 \"。
func SanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				// 下一个非空白字符是 :, ], }, 或 , 时才视为字符串真正结束
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
