package catalog

import (
	"schoolgenius-seeder/internal/application/seeding"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/workflow/prompt"
	apperrors "schoolgenius-seeder/pkg/errors"
)

type struggle struct {
	ID         string
	Type       string
	Subject    string
	GradeRange string
	Text       string
}

var struggles = []struggle{
	{ID: "math_k2", Type: "subject", Subject: "Math", GradeRange: "K-2", Text: "struggles with basic math concepts"},
	{ID: "math_35", Type: "subject", Subject: "Math", GradeRange: "3-5", Text: "struggles with multiplication and division"},
	{ID: "math_68", Type: "subject", Subject: "Math", GradeRange: "6-8", Text: "struggles with algebra"},
	{ID: "math_912", Type: "subject", Subject: "Math", GradeRange: "9-12", Text: "struggles with advanced math"},
	{ID: "reading_k2", Type: "subject", Subject: "Reading", GradeRange: "K-2", Text: "struggles with phonics and decoding"},
	{ID: "reading_35", Type: "subject", Subject: "Reading", GradeRange: "3-5", Text: "struggles with comprehension"},
	{ID: "reading_68", Type: "subject", Subject: "Reading", GradeRange: "6-8", Text: "struggles with analysis"},
	{ID: "reading_912", Type: "subject", Subject: "Reading", GradeRange: "9-12", Text: "struggles with complex texts"},
	{ID: "sit_still_k2", Type: "behavioral", GradeRange: "K-2", Text: "won't sit still for lessons"},
	{ID: "rushes_35", Type: "behavioral", GradeRange: "3-5", Text: "rushes through work"},
	{ID: "avoids_hard_68", Type: "behavioral", GradeRange: "6-8", Text: "refuses to try hard subjects"},
	{ID: "motivation_912", Type: "behavioral", GradeRange: "9-12", Text: "lacks motivation to study"},
	{ID: "test_anxiety", Type: "specific", GradeRange: "All Ages", Text: "has test anxiety"},
	{ID: "gives_up", Type: "specific", GradeRange: "All Ages", Text: "gives up easily"},
	{ID: "perfectionism", Type: "specific", GradeRange: "All Ages", Text: "is a perfectionist and fears mistakes"},
}

// 家长指南没有年龄轴，年级范围随困难项给出
func parentStruggleGuides(reg *prompt.Registry) *seeding.JobDescriptor {
	return &seeding.JobDescriptor{
		Name:        "parent_struggle_guides",
		Description: "Guides for parents whose child is struggling",
		Axes: []seeding.Axis{
			{Name: "struggle", Values: keys(struggles, func(s struggle) string { return s.ID })},
		},
		Prompt: render(reg, prompt.PromptParentStruggleGuideV1, func(t entity.Tuple, vars map[string]any) error {
			for _, s := range struggles {
				if s.ID == t.Value("struggle") {
					subject := s.Subject
					if subject == "" {
						subject = "General"
					}
					vars["struggle_type"] = s.Type
					vars["subject"] = subject
					vars["grade_range"] = s.GradeRange
					vars["struggle_text"] = s.Text
					return nil
				}
			}
			return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown struggle %q", t.Value("struggle"))
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("understanding", seeding.TypeString),
			seeding.Required("specific_tips", seeding.TypeStringArray),
			seeding.Required("whats_normal", seeding.TypeString),
			seeding.Required("when_seek_help", seeding.TypeString),
			seeding.Optional("timeline", seeding.TypeString),
		}},
		TargetTable:    "parent_struggle_guides",
		IdentityFields: []string{"struggle"},
	}
}
