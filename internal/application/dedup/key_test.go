package dedup

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"schoolgenius-seeder/internal/domain/entity"
	apperrors "schoolgenius-seeder/pkg/errors"
)

func mustBuilder(t *testing.T, category string, mode Mode, fields ...string) *Builder {
	t.Helper()
	b, err := NewBuilder(category, mode, fields...)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestCompositeKeyIgnoresTupleOrder(t *testing.T) {
	b := mustBuilder(t, "kid_stuck_responses", Composite, "age_group", "subject", "question_type", "variation")

	base := entity.Tuple{
		{Name: "question_type", Value: "dont_get_it"},
		{Name: "variation", Value: "2"},
		{Name: "subject", Value: "Math"},
		{Name: "age_group", Value: "k2"},
		{Name: "label", Value: "ignored"},
	}
	want, err := b.Key(base)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if want != "kid_stuck_responses|age_group=k2|subject=Math|question_type=dont_get_it|variation=2" {
		t.Errorf("unexpected key %q", want)
	}

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		perm := make(entity.Tuple, len(base))
		for j, k := range r.Perm(len(base)) {
			perm[j] = base[k]
		}
		got, err := b.Key(perm)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if got != want {
			t.Fatalf("permutation %v produced %q, want %q", perm, got, want)
		}
	}
}

func TestCompositeKeyEscapesSeparators(t *testing.T) {
	b := mustBuilder(t, "c", Composite, "a", "b")
	k1, _ := b.Key(entity.Tuple{{Name: "a", Value: "x|b=y"}, {Name: "b", Value: "z"}})
	k2, _ := b.Key(entity.Tuple{{Name: "a", Value: "x"}, {Name: "b", Value: "y|b=z"}})
	if k1 == k2 {
		t.Fatalf("separator injection collided: %q", k1)
	}
}

func TestHashedKeyNormalizesText(t *testing.T) {
	b := mustBuilder(t, "qa_library", Hashed, "question", "grade_band", "skill_level", "page_context")

	k1, err := b.Key(entity.Tuple{
		{Name: "page_context", Value: "lesson"},
		{Name: "question", Value: "  What is a Fraction? "},
		{Name: "grade_band", Value: "3-5"},
		{Name: "skill_level", Value: "on"},
	})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	k2, err := b.Key(entity.Tuple{
		{Name: "question", Value: "what   is a fraction?"},
		{Name: "grade_band", Value: "3-5"},
		{Name: "skill_level", Value: "ON"},
		{Name: "page_context", Value: "Lesson"},
	})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if k1 != k2 {
		t.Errorf("normalized keys differ: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(k1))
	}
}

func TestKeyMissingFieldFailsFast(t *testing.T) {
	b := mustBuilder(t, "time_greetings", Composite, "age_group", "time_slot", "variation")

	cases := []entity.Tuple{
		{{Name: "age_group", Value: "k2"}, {Name: "variation", Value: "1"}},
		{{Name: "age_group", Value: "k2"}, {Name: "time_slot", Value: "  "}, {Name: "variation", Value: "1"}},
	}
	for _, tuple := range cases {
		_, err := b.Key(tuple)
		var missing *MissingAxisError
		if !errors.As(err, &missing) {
			t.Fatalf("error = %v, want MissingAxisError", err)
		}
		if missing.Field != "time_slot" {
			t.Errorf("missing field = %q", missing.Field)
		}
		if !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
			t.Errorf("error code missing: %v", err)
		}
	}
}

func TestNewBuilderRejectsBadConfig(t *testing.T) {
	if _, err := NewBuilder("", Composite, "a"); err == nil {
		t.Error("empty category accepted")
	}
	if _, err := NewBuilder("c", Composite); err == nil {
		t.Error("no fields accepted")
	}
	if _, err := NewBuilder("c", Hashed, "a", "a"); err == nil {
		t.Error("duplicate field accepted")
	}
}

func TestNoCollisionsInSample(t *testing.T) {
	for _, mode := range []Mode{Composite, Hashed} {
		b := mustBuilder(t, "sample", mode, "age_group", "subject", "variant", "question")
		seen := make(map[string]string, 10000)
		for i := 0; i < 10000; i++ {
			tuple := entity.Tuple{
				{Name: "age_group", Value: fmt.Sprintf("band-%d", i%4)},
				{Name: "subject", Value: fmt.Sprintf("subject-%d", i%7)},
				{Name: "variant", Value: fmt.Sprintf("%d", i%13)},
				{Name: "question", Value: fmt.Sprintf("question number %d", i)},
			}
			key, err := b.Key(tuple)
			if err != nil {
				t.Fatalf("Key: %v", err)
			}
			if prev, dup := seen[key]; dup {
				t.Fatalf("mode %d: collision between %s and %s", mode, prev, tuple)
			}
			seen[key] = tuple.String()
		}
	}
}
