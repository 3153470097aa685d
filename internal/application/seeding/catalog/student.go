package catalog

import (
	"schoolgenius-seeder/internal/application/seeding"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/workflow/prompt"
	apperrors "schoolgenius-seeder/pkg/errors"
)

var subjects = []string{"Math", "Reading", "Spelling", "Coding", "Typing"}

type questionType struct {
	ID         string
	Phrase     string
	Variations int
}

var questionTypes = []questionType{
	{ID: "dont_get_it", Phrase: "I don't get it", Variations: 4},
	{ID: "this_is_hard", Phrase: "This is hard", Variations: 4},
	{ID: "help", Phrase: "Help!", Variations: 3},
	{ID: "confused", Phrase: "I'm confused", Variations: 3},
	{ID: "explain_again", Phrase: "Can you explain again?", Variations: 3},
}

func findQuestionType(id string) (questionType, bool) {
	for _, q := range questionTypes {
		if q.ID == id {
			return q, true
		}
	}
	return questionType{}, false
}

func kidStuckResponses(reg *prompt.Registry) *seeding.JobDescriptor {
	variations := seeding.Axis{
		Name: "variation",
		ValuesFunc: func(prefix entity.Tuple) []string {
			q, _ := findQuestionType(prefix.Value("question_type"))
			return seeding.Range("variation", q.Variations).Values
		},
	}
	return &seeding.JobDescriptor{
		Name:        "kid_stuck_responses",
		Description: "Responses when a student says they are stuck",
		Axes: []seeding.Axis{
			{Name: "question_type", Values: keys(questionTypes, func(q questionType) string { return q.ID })},
			variations,
			{Name: "subject", Values: subjects},
			ageAxis(),
		},
		Prompt: render(reg, prompt.PromptKidStuckV1, func(t entity.Tuple, vars map[string]any) error {
			q, ok := findQuestionType(t.Value("question_type"))
			if !ok {
				return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown question type %q", t.Value("question_type"))
			}
			vars["phrase"] = q.Phrase
			return nil
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("response", seeding.TypeString),
			seeding.Optional("follow_up_hint", seeding.TypeString),
			seeding.Optional("response_tone", seeding.TypeString),
		}},
		TargetTable:    "kid_stuck_responses",
		IdentityFields: []string{"question_type", "variation", "subject", "age_group"},
	}
}

type concept struct {
	ID         string
	Subject    string
	Name       string
	Difficulty string
}

var concepts = []concept{
	{ID: "math_fractions", Subject: "Math", Name: "fractions", Difficulty: "intermediate"},
	{ID: "math_multiplication", Subject: "Math", Name: "multiplication", Difficulty: "basic"},
	{ID: "math_division", Subject: "Math", Name: "division", Difficulty: "intermediate"},
	{ID: "math_percentages", Subject: "Math", Name: "percentages", Difficulty: "advanced"},
	{ID: "reading_main_idea", Subject: "Reading", Name: "main idea", Difficulty: "basic"},
	{ID: "reading_context_clues", Subject: "Reading", Name: "context clues", Difficulty: "intermediate"},
	{ID: "reading_inference", Subject: "Reading", Name: "inference", Difficulty: "intermediate"},
	{ID: "coding_variables", Subject: "Coding", Name: "variables", Difficulty: "basic"},
	{ID: "coding_loops", Subject: "Coding", Name: "loops", Difficulty: "intermediate"},
	{ID: "coding_functions", Subject: "Coding", Name: "functions", Difficulty: "advanced"},
}

type theme struct {
	ID       string
	Name     string
	Examples string
}

var themes = []theme{
	{ID: "battle", Name: "Battle Royale", Examples: "shield potions, loot, storm circle, drop zones"},
	{ID: "princess", Name: "Princess", Examples: "castle rooms, royal treasures, magic spells"},
	{ID: "dinosaur", Name: "Dinosaur", Examples: "dino types, fossils, prehistoric landscapes"},
	{ID: "space", Name: "Space", Examples: "planets, rockets, space stations, galaxies"},
}

func subjectAnalogies(reg *prompt.Registry) *seeding.JobDescriptor {
	return &seeding.JobDescriptor{
		Name:        "subject_analogies",
		Description: "Themed analogies that explain a core concept",
		Axes: []seeding.Axis{
			{Name: "concept", Values: keys(concepts, func(c concept) string { return c.ID })},
			ageAxis(),
			{Name: "theme", Values: keys(themes, func(t theme) string { return t.ID })},
		},
		Prompt: render(reg, prompt.PromptSubjectAnalogyV1, func(t entity.Tuple, vars map[string]any) error {
			var c *concept
			for i := range concepts {
				if concepts[i].ID == t.Value("concept") {
					c = &concepts[i]
				}
			}
			var th *theme
			for i := range themes {
				if themes[i].ID == t.Value("theme") {
					th = &themes[i]
				}
			}
			if c == nil || th == nil {
				return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown concept or theme in %s", t)
			}
			vars["subject"] = c.Subject
			vars["concept_name"] = c.Name
			vars["difficulty"] = c.Difficulty
			vars["theme_name"] = th.Name
			vars["theme_examples"] = th.Examples
			return nil
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("analogy", seeding.TypeString),
			seeding.Required("explanation", seeding.TypeString),
			seeding.Optional("when_to_use", seeding.TypeString),
			seeding.Optional("difficulty", seeding.TypeString),
		}},
		TargetTable:    "subject_analogies",
		IdentityFields: []string{"concept", "age_group", "theme"},
	}
}

type transition struct {
	ID          string
	From        string
	To          string
	Description string
}

var transitions = []transition{
	{ID: "rules_demo", From: "rules", To: "demo", Description: "From learning rules to seeing a demonstration"},
	{ID: "demo_practice", From: "demo", To: "practice", Description: "From demonstration to hands-on practice"},
	{ID: "practice_quiz", From: "practice", To: "quiz", Description: "From practice to the quiz"},
}

func transitionPhrases(reg *prompt.Registry) *seeding.JobDescriptor {
	return &seeding.JobDescriptor{
		Name:        "transition_phrases",
		Description: "Lines that move a lesson from one phase to the next",
		Axes: []seeding.Axis{
			{Name: "transition", Values: keys(transitions, func(t transition) string { return t.ID })},
			{Name: "subject", Values: subjects},
			ageAxis(),
		},
		Prompt: render(reg, prompt.PromptTransitionPhraseV1, func(t entity.Tuple, vars map[string]any) error {
			for _, tr := range transitions {
				if tr.ID == t.Value("transition") {
					vars["from_phase"] = tr.From
					vars["to_phase"] = tr.To
					vars["transition_description"] = tr.Description
					return nil
				}
			}
			return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown transition %q", t.Value("transition"))
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("phrase", seeding.TypeString),
			seeding.Optional("enthusiasm_level", seeding.TypeString),
		}},
		TargetTable:    "transition_phrases",
		IdentityFields: []string{"transition", "subject", "age_group"},
	}
}
