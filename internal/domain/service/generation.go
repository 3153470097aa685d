// Package service 定义领域服务端口
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GenerateRequest 生成请求
type GenerateRequest struct {
	SystemInstruction string
	Prompt            string
}

// Usage 单次调用的计费用量，各客户端尽量填满
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	InputChars   int64
	OutputChars  int64
}

// StructuredOutput 从响应中提取的结构化块
type StructuredOutput struct {
	Raw   json.RawMessage
	Value any
}

// Object 以对象形式返回，非对象时 ok 为 false
func (o StructuredOutput) Object() (map[string]any, bool) {
	m, ok := o.Value.(map[string]any)
	return m, ok
}

// Generation 一次成功的生成
type Generation struct {
	Provider string
	Model    string
	Text     string
	Output   StructuredOutput
	Usage    Usage
	Latency  time.Duration
}

// Generator 生成服务客户端，不做内部重试
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

// GenerationParseError 响应中找不到合法的结构化块
// 该响应已计费，Usage 供账本记录
type GenerationParseError struct {
	Provider string
	Snippet  string
	Usage    Usage
	Err      error
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("%s: no structured block in response %q: %v", e.Provider, e.Snippet, e.Err)
}

func (e *GenerationParseError) Unwrap() error { return e.Err }

// GenerationTransportError 调用失败 (网络错误或非成功状态码)
type GenerationTransportError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *GenerationTransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transport failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport failed: %v", e.Provider, e.Err)
}

func (e *GenerationTransportError) Unwrap() error { return e.Err }

// Snippet 截断响应文本用于日志
func Snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
