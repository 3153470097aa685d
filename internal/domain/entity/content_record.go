// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strings"
	"time"
)

// Param 参数元组中的一个维度取值
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Tuple 有序参数元组，顺序即枚举时的轴顺序
type Tuple []Param

// Get 按名称查找参数
func (t Tuple) Get(name string) (string, bool) {
	for _, p := range t {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Value 返回参数值，不存在时为空字符串
func (t Tuple) Value(name string) string {
	v, _ := t.Get(name)
	return v
}

// With 返回追加了一个参数的新元组，不修改原元组
func (t Tuple) With(name, value string) Tuple {
	out := make(Tuple, len(t), len(t)+1)
	copy(out, t)
	return append(out, Param{Name: name, Value: value})
}

// Map 转为模板变量
func (t Tuple) Map() map[string]any {
	m := make(map[string]any, len(t))
	for _, p := range t {
		m[p.Name] = p.Value
	}
	return m
}

func (t Tuple) String() string {
	parts := make([]string, 0, len(t))
	for _, p := range t {
		parts = append(parts, fmt.Sprintf("%s=%s", p.Name, p.Value))
	}
	return strings.Join(parts, " ")
}

// ContentRecord 一条生成内容
// 同一 TargetTable 内 DedupKey 唯一，写入后不再修改
type ContentRecord struct {
	ID             string         `json:"id"`
	Job            string         `json:"job"`
	TargetTable    string         `json:"target_table"`
	DedupKey       string         `json:"dedup_key"`
	Params         Tuple          `json:"params"`
	IdentityFields []string       `json:"identity_fields"`
	Payload        map[string]any `json:"payload"`
	Provider       string         `json:"provider"`
	Model          string         `json:"model,omitempty"`
	CostUSD        float64        `json:"cost_usd"`
	CreatedAt      time.Time      `json:"created_at"`
}
