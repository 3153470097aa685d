// Package seeding 实现内容预生成批处理：任务枚举、单任务执行与跨任务编排
package seeding

import (
	"context"
	"fmt"
	"strconv"

	"schoolgenius-seeder/internal/application/dedup"
	"schoolgenius-seeder/internal/domain/entity"
	apperrors "schoolgenius-seeder/pkg/errors"
)

// Axis 参数空间的一个维度
// ValuesFunc 非空时按已确定的前缀元组计算取值，用于依赖型嵌套枚举
type Axis struct {
	Name       string
	Values     []string
	ValuesFunc func(prefix entity.Tuple) []string
}

func (a Axis) values(prefix entity.Tuple) []string {
	if a.ValuesFunc != nil {
		return a.ValuesFunc(prefix)
	}
	return a.Values
}

// Range 生成 1..n 的变体序号轴
func Range(name string, n int) Axis {
	values := make([]string, n)
	for i := range values {
		values[i] = strconv.Itoa(i + 1)
	}
	return Axis{Name: name, Values: values}
}

// PromptFunc 由参数元组渲染用户提示词，ctx 为当前条目的上下文
type PromptFunc func(ctx context.Context, t entity.Tuple) (string, error)

// JobDescriptor 一个内容类别的静态定义，进程启动时构建，不持久化
type JobDescriptor struct {
	Name        string
	Description string
	Axes        []Axis
	Prompt      PromptFunc
	Schema      Schema
	TargetTable string
	// IdentityFields 组成去重键的参数名
	IdentityFields []string
	// HashIdentity 身份字段含自由文本时为 true
	HashIdentity bool
	// Provider 为空时使用默认提供商
	Provider             string
	EstimatedItems       int
	EstimatedUnitCostUSD float64
}

// EstimatedCostUSD 预估总开销
func (d *JobDescriptor) EstimatedCostUSD() float64 {
	return float64(d.EstimatedItems) * d.EstimatedUnitCostUSD
}

// KeyBuilder 构建该任务的去重键生成器
func (d *JobDescriptor) KeyBuilder() (*dedup.Builder, error) {
	mode := dedup.Composite
	if d.HashIdentity {
		mode = dedup.Hashed
	}
	return dedup.NewBuilder(d.TargetTable, mode, d.IdentityFields...)
}

// Validate 检查定义完整性
func (d *JobDescriptor) Validate() error {
	switch {
	case d.Name == "":
		return apperrors.New(apperrors.CodeInvalidConfig, "job descriptor without name")
	case len(d.Axes) == 0:
		return apperrors.Newf(apperrors.CodeInvalidConfig, "job %s has no parameter axes", d.Name)
	case d.Prompt == nil:
		return apperrors.Newf(apperrors.CodeInvalidConfig, "job %s has no prompt template", d.Name)
	case d.TargetTable == "":
		return apperrors.Newf(apperrors.CodeInvalidConfig, "job %s has no target table", d.Name)
	}
	axes := make(map[string]struct{}, len(d.Axes))
	for _, a := range d.Axes {
		if _, dup := axes[a.Name]; dup {
			return apperrors.Newf(apperrors.CodeInvalidConfig, "job %s repeats axis %q", d.Name, a.Name)
		}
		axes[a.Name] = struct{}{}
	}
	for _, f := range d.IdentityFields {
		if _, ok := axes[f]; !ok {
			return apperrors.Newf(apperrors.CodeInvalidConfig, "job %s identity field %q is not an axis", d.Name, f)
		}
	}
	_, err := d.KeyBuilder()
	return err
}

// Enumerate 按轴顺序展开笛卡尔积，顺序确定
func (d *JobDescriptor) Enumerate() []entity.Tuple {
	tuples := []entity.Tuple{{}}
	for _, axis := range d.Axes {
		next := make([]entity.Tuple, 0, len(tuples))
		for _, prefix := range tuples {
			for _, v := range axis.values(prefix) {
				next = append(next, prefix.With(axis.Name, v))
			}
		}
		tuples = next
	}
	return tuples
}

func (d *JobDescriptor) String() string {
	return fmt.Sprintf("%s(%d items -> %s)", d.Name, d.EstimatedItems, d.TargetTable)
}
