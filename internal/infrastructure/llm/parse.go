package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"schoolgenius-seeder/internal/domain/service"
)

// ErrNoStructuredBlock 响应中没有可解析的 JSON 对象或数组
var ErrNoStructuredBlock = errors.New("no well-formed JSON object or array found")

// ExtractStructured 从模型输出中取出结构化 JSON 值（对象/数组）。
// 优先使用第一个代码围栏 (```json 或 ```) 内的内容；围栏缺失或内容不可解码时，
// 再在全文中逐个候选起点尝试解码，第一个能完整解码的块即为结果。
func ExtractStructured(text string) (service.StructuredOutput, error) {
	if body, ok := fencedBlock(text); ok {
		if out, err := scanJSON(body); err == nil {
			return out, nil
		}
	}
	return scanJSON(text)
}

// fencedBlock 返回第一个代码围栏内的文本，语言标记只接受 json 或空
func fencedBlock(text string) (string, bool) {
	const fence = "```"
	open := strings.Index(text, fence)
	if open < 0 {
		return "", false
	}
	rest := text[open+len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", false
	}
	lang := strings.ToLower(strings.TrimSpace(rest[:nl]))
	if lang != "" && lang != "json" {
		return "", false
	}
	body := rest[nl+1:]
	end := strings.Index(body, fence)
	if end < 0 {
		return "", false
	}
	return body[:end], true
}

func scanJSON(text string) (service.StructuredOutput, error) {
	s := strings.TrimSpace(text)
	for start := 0; start < len(s); start++ {
		c := s[start]
		if c != '{' && c != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		return service.StructuredOutput{Raw: bytes.Clone(raw), Value: value}, nil
	}
	return service.StructuredOutput{}, ErrNoStructuredBlock
}

// parseGeneration 解析失败时包装为 GenerationParseError，保留计费用量
func parseGeneration(provider string, gen *service.Generation) (*service.Generation, error) {
	out, err := ExtractStructured(gen.Text)
	if err != nil {
		return nil, &service.GenerationParseError{
			Provider: provider,
			Snippet:  service.Snippet(gen.Text, 120),
			Usage:    gen.Usage,
			Err:      err,
		}
	}
	gen.Output = out
	return gen, nil
}
