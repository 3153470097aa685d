// Package catalog 定义具体的内容类别
package catalog

import (
	"context"

	"schoolgenius-seeder/internal/application/seeding"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/workflow/prompt"
	apperrors "schoolgenius-seeder/pkg/errors"
)

// DefaultUnitCostUSD 按单次请求计价的默认预估
const DefaultUnitCostUSD = 0.001

// AgeGroup 年龄段及其语气要求
type AgeGroup struct {
	ID    string
	Label string
	Tone  string
}

// AgeGroups 四个年龄段
var AgeGroups = []AgeGroup{
	{ID: "k2", Label: "K-2 (ages 5-8)", Tone: "Super simple words, very excited, lots of emojis"},
	{ID: "grades35", Label: "3-5 (ages 8-11)", Tone: "Friendly teacher, encouraging, a few emojis"},
	{ID: "grades68", Label: "6-8 (ages 11-14)", Tone: "Mature peer, respectful, at most one emoji"},
	{ID: "grades912", Label: "9-12 (ages 14-18)", Tone: "Professional and academic, no emojis"},
}

func ageAxis() seeding.Axis {
	ids := make([]string, len(AgeGroups))
	for i, g := range AgeGroups {
		ids[i] = g.ID
	}
	return seeding.Axis{Name: "age_group", Values: ids}
}

func ageGroup(id string) (AgeGroup, bool) {
	for _, g := range AgeGroups {
		if g.ID == id {
			return g, true
		}
	}
	return AgeGroup{}, false
}

// varsFunc 补充元组之外的模板变量
type varsFunc func(t entity.Tuple, vars map[string]any) error

// render 组合元组、年龄段说明与额外变量并渲染模板
func render(reg *prompt.Registry, id prompt.PromptID, extra varsFunc) seeding.PromptFunc {
	return func(ctx context.Context, t entity.Tuple) (string, error) {
		vars := t.Map()
		if age, ok := t.Get("age_group"); ok {
			g, known := ageGroup(age)
			if !known {
				return "", apperrors.Newf(apperrors.CodeInvalidConfig, "unknown age group %q", age)
			}
			vars["age_label"] = g.Label
			vars["age_tone"] = g.Tone
		}
		if extra != nil {
			if err := extra(t, vars); err != nil {
				return "", err
			}
		}
		return reg.Render(ctx, id, vars)
	}
}

func keys[T any](items []T, key func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = key(it)
	}
	return out
}

// All 返回全部任务，顺序即默认批次顺序
func All(reg *prompt.Registry) []*seeding.JobDescriptor {
	jobs := []*seeding.JobDescriptor{
		kidStuckResponses(reg),
		subjectAnalogies(reg),
		parentStruggleGuides(reg),
		transitionPhrases(reg),
		achievementCelebrations(reg),
		timeGreetings(reg),
		returnMessages(reg),
		gigiPersonality(reg),
		qaLibrary(reg),
	}
	for _, j := range jobs {
		if j.EstimatedUnitCostUSD == 0 {
			j.EstimatedUnitCostUSD = DefaultUnitCostUSD
		}
		j.EstimatedItems = len(j.Enumerate())
	}
	return jobs
}

// Ordered 按名称挑选并排序任务；names 为空时原样返回
func Ordered(jobs []*seeding.JobDescriptor, names []string) ([]*seeding.JobDescriptor, error) {
	if len(names) == 0 {
		return jobs, nil
	}
	byName := make(map[string]*seeding.JobDescriptor, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}
	out := make([]*seeding.JobDescriptor, 0, len(names))
	for _, n := range names {
		j, ok := byName[n]
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "seeding.jobs names unknown job %q", n)
		}
		out = append(out, j)
	}
	return out, nil
}
