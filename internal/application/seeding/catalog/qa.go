package catalog

import (
	"schoolgenius-seeder/internal/application/seeding"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/workflow/prompt"
)

// qaQuestions 每个页面常见的学生提问，问题本身是自由文本
var qaQuestions = map[string][]string{
	"dashboard": {
		"What should I work on today?",
		"How do I earn more coins?",
		"Why did my streak reset?",
	},
	"math_lesson": {
		"Why do we need to learn this?",
		"Can you show me another example?",
		"How do I check if my answer is right?",
	},
	"reading_lesson": {
		"What does this word mean?",
		"How do I find the main idea?",
		"Why did the character do that?",
	},
	"coding_lesson": {
		"Why is my code not working?",
		"What is a bug?",
		"How do I know which loop to use?",
	},
}

var qaPages = []string{"dashboard", "math_lesson", "reading_lesson", "coding_lesson"}

func qaLibrary(reg *prompt.Registry) *seeding.JobDescriptor {
	return &seeding.JobDescriptor{
		Name:        "qa_library",
		Description: "Answers to common student questions by page",
		Axes: []seeding.Axis{
			{Name: "page_context", Values: qaPages},
			{
				Name: "question",
				ValuesFunc: func(prefix entity.Tuple) []string {
					return qaQuestions[prefix.Value("page_context")]
				},
			},
			{Name: "grade_band", Values: []string{"K-2", "3-5", "6-8", "9-12"}},
			{Name: "skill_level", Values: []string{"below", "on", "above"}},
		},
		Prompt: render(reg, prompt.PromptQALibraryV1, nil),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("answer", seeding.TypeString),
			seeding.Optional("follow_up", seeding.TypeString),
		}},
		TargetTable:    "qa_library",
		IdentityFields: []string{"question", "grade_band", "skill_level", "page_context"},
		HashIdentity:   true,
	}
}
