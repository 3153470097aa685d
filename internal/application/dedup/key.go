// Package dedup 计算生成内容的确定性去重键
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"schoolgenius-seeder/internal/domain/entity"
	apperrors "schoolgenius-seeder/pkg/errors"
)

// Mode 键的生成方式
type Mode int

const (
	// Composite 枚举型参数直接拼接为复合键
	Composite Mode = iota
	// Hashed 自由文本参数归一化后取 SHA-256
	Hashed
)

// MissingAxisError 身份字段缺失或为空
type MissingAxisError struct {
	Category string
	Field    string
}

func (e *MissingAxisError) Error() string {
	return fmt.Sprintf("dedup key for %s: identity field %q is missing or empty", e.Category, e.Field)
}

// Builder 按声明的字段顺序生成键，与元组的构造顺序无关
type Builder struct {
	category string
	fields   []string
	mode     Mode
}

// NewBuilder 创建键生成器
func NewBuilder(category string, mode Mode, fields ...string) (*Builder, error) {
	if strings.TrimSpace(category) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "dedup category must not be empty")
	}
	if len(fields) == 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "dedup builder for %s has no identity fields", category)
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "dedup builder for %s repeats field %q", category, f)
		}
		seen[f] = struct{}{}
	}
	return &Builder{
		category: category,
		fields:   append([]string(nil), fields...),
		mode:     mode,
	}, nil
}

// Fields 返回身份字段
func (b *Builder) Fields() []string {
	return append([]string(nil), b.fields...)
}

// Key 计算去重键，任一身份字段缺失时返回配置错误
func (b *Builder) Key(t entity.Tuple) (string, error) {
	values := make([]string, len(b.fields))
	for i, f := range b.fields {
		v, ok := t.Get(f)
		if !ok || strings.TrimSpace(v) == "" {
			return "", apperrors.Wrap(&MissingAxisError{Category: b.category, Field: f},
				apperrors.CodeInvalidConfig, "incomplete parameter tuple")
		}
		values[i] = v
	}

	if b.mode == Hashed {
		return b.hashed(values), nil
	}
	return b.composite(values), nil
}

// composite 形如 category|age_group=k2|variant=1，值经过转义避免分隔符冲突
func (b *Builder) composite(values []string) string {
	var sb strings.Builder
	sb.WriteString(url.QueryEscape(b.category))
	for i, f := range b.fields {
		sb.WriteByte('|')
		sb.WriteString(f)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(values[i]))
	}
	return sb.String()
}

func (b *Builder) hashed(values []string) string {
	h := sha256.New()
	h.Write([]byte(Normalize(b.category)))
	for i, f := range b.fields {
		// 字段名与值之间用不可见分隔符，防止拼接歧义
		h.Write([]byte{0x1f})
		h.Write([]byte(f))
		h.Write([]byte{0x1e})
		h.Write([]byte(Normalize(values[i])))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize 小写、去首尾空白并合并连续空白
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
