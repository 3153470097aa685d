package catalog

import (
	"strconv"

	"schoolgenius-seeder/internal/application/seeding"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/workflow/prompt"
	apperrors "schoolgenius-seeder/pkg/errors"
)

type achievement struct {
	ID          string
	Type        string
	Value       int
	Description string
}

var achievements = []achievement{
	{ID: "first_lesson", Type: "first_lesson", Description: "Completed their first lesson ever"},
	{ID: "streak_3", Type: "streak", Value: 3, Description: "3-day learning streak"},
	{ID: "streak_7", Type: "streak", Value: 7, Description: "7-day learning streak"},
	{ID: "streak_14", Type: "streak", Value: 14, Description: "14-day learning streak"},
	{ID: "streak_30", Type: "streak", Value: 30, Description: "30-day learning streak"},
	{ID: "coins_50", Type: "coins", Value: 50, Description: "Earned 50 coins"},
	{ID: "coins_100", Type: "coins", Value: 100, Description: "Earned 100 coins"},
	{ID: "coins_500", Type: "coins", Value: 500, Description: "Earned 500 coins"},
	{ID: "mastery", Type: "mastery", Description: "Mastered a skill"},
}

// jsonInt 0 视为 null
func jsonInt(v int) string {
	if v == 0 {
		return "null"
	}
	return strconv.Itoa(v)
}

func achievementCelebrations(reg *prompt.Registry) *seeding.JobDescriptor {
	return &seeding.JobDescriptor{
		Name:        "achievement_celebrations",
		Description: "Celebration messages for streaks, coins and mastery",
		Axes: []seeding.Axis{
			{Name: "achievement", Values: keys(achievements, func(a achievement) string { return a.ID })},
			seeding.Range("variation", 2),
			ageAxis(),
		},
		Prompt: render(reg, prompt.PromptAchievementCelebrationV1, func(t entity.Tuple, vars map[string]any) error {
			for _, a := range achievements {
				if a.ID == t.Value("achievement") {
					vars["achievement_type"] = a.Type
					vars["milestone_value"] = jsonInt(a.Value)
					vars["achievement_description"] = a.Description
					return nil
				}
			}
			return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown achievement %q", t.Value("achievement"))
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("main_message", seeding.TypeString),
			seeding.Optional("secondary_message", seeding.TypeString),
			seeding.Optional("excitement_level", seeding.TypeString),
		}},
		TargetTable:    "achievement_celebrations",
		IdentityFields: []string{"achievement", "variation", "age_group"},
	}
}

type timeSlot struct {
	ID          string
	Description string
	Energy      string
	Variations  int
}

var timeSlots = []timeSlot{
	{ID: "morning", Description: "Morning (6am-12pm)", Energy: "upbeat", Variations: 5},
	{ID: "afternoon", Description: "Afternoon (12pm-6pm)", Energy: "upbeat", Variations: 5},
	{ID: "evening", Description: "Evening (6pm-10pm)", Energy: "calm", Variations: 3},
	{ID: "weekend", Description: "Weekend morning", Energy: "chill", Variations: 3},
}

func findTimeSlot(id string) (timeSlot, bool) {
	for _, s := range timeSlots {
		if s.ID == id {
			return s, true
		}
	}
	return timeSlot{}, false
}

func timeGreetings(reg *prompt.Registry) *seeding.JobDescriptor {
	return &seeding.JobDescriptor{
		Name:        "time_greetings",
		Description: "Greetings by time of day",
		Axes: []seeding.Axis{
			{Name: "time_slot", Values: keys(timeSlots, func(s timeSlot) string { return s.ID })},
			{
				Name: "variation",
				ValuesFunc: func(prefix entity.Tuple) []string {
					s, _ := findTimeSlot(prefix.Value("time_slot"))
					return seeding.Range("variation", s.Variations).Values
				},
			},
			ageAxis(),
		},
		Prompt: render(reg, prompt.PromptTimeGreetingV1, func(t entity.Tuple, vars map[string]any) error {
			s, ok := findTimeSlot(t.Value("time_slot"))
			if !ok {
				return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown time slot %q", t.Value("time_slot"))
			}
			vars["time_description"] = s.Description
			vars["energy"] = s.Energy
			return nil
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("greeting", seeding.TypeString),
			seeding.Optional("energy_level", seeding.TypeString),
		}},
		TargetTable:    "greeting_messages",
		IdentityFields: []string{"time_slot", "variation", "age_group"},
	}
}

type awayWindow struct {
	ID          string
	Min, Max    int
	Description string
}

var awayWindows = []awayWindow{
	{ID: "1_2", Min: 1, Max: 2, Description: "1-2 days away"},
	{ID: "3_6", Min: 3, Max: 6, Description: "3-6 days away"},
	{ID: "7_13", Min: 7, Max: 13, Description: "About a week away"},
	{ID: "14_29", Min: 14, Max: 29, Description: "2-4 weeks away"},
	{ID: "30_plus", Min: 30, Description: "30 or more days away"},
}

func returnMessages(reg *prompt.Registry) *seeding.JobDescriptor {
	return &seeding.JobDescriptor{
		Name:        "return_messages",
		Description: "Welcome-back messages after time away",
		Axes: []seeding.Axis{
			{Name: "away", Values: keys(awayWindows, func(w awayWindow) string { return w.ID })},
			seeding.Range("variation", 2),
			ageAxis(),
		},
		Prompt: render(reg, prompt.PromptReturnMessageV1, func(t entity.Tuple, vars map[string]any) error {
			for _, w := range awayWindows {
				if w.ID == t.Value("away") {
					vars["away_description"] = w.Description
					vars["days_min"] = jsonInt(w.Min)
					vars["days_max"] = jsonInt(w.Max)
					return nil
				}
			}
			return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown away window %q", t.Value("away"))
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("message", seeding.TypeString),
			seeding.Optional("action_suggestion", seeding.TypeString),
			seeding.Optional("days_away_min", seeding.TypeNumber),
			seeding.Optional("days_away_max", seeding.TypeNumber),
		}},
		TargetTable:    "return_messages",
		IdentityFields: []string{"away", "variation", "age_group"},
	}
}

var gigiCategories = []struct {
	ID          string
	Description string
}{
	{ID: "encouragement", Description: "General encouragement during learning"},
	{ID: "mistake_reframe", Description: "Reframing a mistake as a learning opportunity"},
	{ID: "excitement", Description: "Excitement about the student's progress"},
	{ID: "motivation", Description: "A short motivational pep talk"},
	{ID: "growth_mindset", Description: "Teaching a growth mindset principle"},
}

func gigiPersonality(reg *prompt.Registry) *seeding.JobDescriptor {
	ids := make([]string, len(gigiCategories))
	for i, c := range gigiCategories {
		ids[i] = c.ID
	}
	return &seeding.JobDescriptor{
		Name:        "gigi_personality",
		Description: "Tutor character lines by category",
		Axes: []seeding.Axis{
			{Name: "category", Values: ids},
			seeding.Range("variation", 3),
			ageAxis(),
		},
		Prompt: render(reg, prompt.PromptGigiPersonalityV1, func(t entity.Tuple, vars map[string]any) error {
			for _, c := range gigiCategories {
				if c.ID == t.Value("category") {
					vars["category_description"] = c.Description
					return nil
				}
			}
			return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown gigi category %q", t.Value("category"))
		}),
		Schema: seeding.Schema{Fields: []seeding.Field{
			seeding.Required("phrase", seeding.TypeString),
			seeding.Optional("when_to_use", seeding.TypeString),
		}},
		TargetTable:    "gigi_personality_phrases",
		IdentityFields: []string{"category", "variation", "age_group"},
	}
}
