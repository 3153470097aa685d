package catalog

import (
	"context"
	"strings"
	"testing"

	"schoolgenius-seeder/internal/workflow/prompt"
)

func TestCatalogSizes(t *testing.T) {
	want := map[string]int{
		"kid_stuck_responses":      340,
		"subject_analogies":        160,
		"parent_struggle_guides":   15,
		"transition_phrases":       60,
		"achievement_celebrations": 72,
		"time_greetings":           64,
		"return_messages":          40,
		"gigi_personality":         60,
		"qa_library":               144,
	}
	jobs := All(prompt.NewRegistry())
	if len(jobs) != len(want) {
		t.Fatalf("got %d jobs, want %d", len(jobs), len(want))
	}
	for _, j := range jobs {
		if got := len(j.Enumerate()); got != want[j.Name] {
			t.Errorf("%s: %d items, want %d", j.Name, got, want[j.Name])
		}
		if j.EstimatedItems != want[j.Name] {
			t.Errorf("%s: estimated %d", j.Name, j.EstimatedItems)
		}
		if j.EstimatedCostUSD() <= 0 {
			t.Errorf("%s: no cost estimate", j.Name)
		}
	}
}

func TestCatalogDescriptorsValidate(t *testing.T) {
	for _, j := range All(prompt.NewRegistry()) {
		if err := j.Validate(); err != nil {
			t.Errorf("%s: %v", j.Name, err)
		}
	}
}

func TestCatalogKeysAreUniquePerJob(t *testing.T) {
	for _, j := range All(prompt.NewRegistry()) {
		kb, err := j.KeyBuilder()
		if err != nil {
			t.Fatalf("%s: %v", j.Name, err)
		}
		seen := map[string]bool{}
		for _, tuple := range j.Enumerate() {
			k, err := kb.Key(tuple)
			if err != nil {
				t.Fatalf("%s: %v", j.Name, err)
			}
			if seen[k] {
				t.Fatalf("%s: duplicate key %s", j.Name, k)
			}
			seen[k] = true
		}
	}
}

func TestCatalogPromptsRender(t *testing.T) {
	for _, j := range All(prompt.NewRegistry()) {
		tuples := j.Enumerate()
		for _, tuple := range []int{0, len(tuples) - 1} {
			out, err := j.Prompt(context.Background(), tuples[tuple])
			if err != nil {
				t.Errorf("%s %s: %v", j.Name, tuples[tuple], err)
				continue
			}
			if !strings.Contains(out, "Return this JSON") {
				t.Errorf("%s: prompt lacks output contract", j.Name)
			}
		}
	}
}

func TestOrdered(t *testing.T) {
	jobs := All(prompt.NewRegistry())

	got, err := Ordered(jobs, []string{"time_greetings", "kid_stuck_responses"})
	if err != nil {
		t.Fatalf("Ordered: %v", err)
	}
	if len(got) != 2 || got[0].Name != "time_greetings" || got[1].Name != "kid_stuck_responses" {
		t.Errorf("unexpected order: %v", got)
	}
	if _, err := Ordered(jobs, []string{"nope"}); err == nil {
		t.Error("unknown job accepted")
	}
	if all, _ := Ordered(jobs, nil); len(all) != len(jobs) {
		t.Error("empty selection should keep every job")
	}
}
