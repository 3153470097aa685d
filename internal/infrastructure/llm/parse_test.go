package llm

import (
	"errors"
	"testing"

	"schoolgenius-seeder/internal/domain/service"
)

func TestExtractStructured(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"message":"hi"}`, `{"message":"hi"}`},
		{"code fence", "```json\n{\"message\": \"hi\"}\n```", `{"message": "hi"}`},
		{"prose around", "Sure! Here it is:\n{\"a\": {\"b\": [1, 2]}}\nHope this helps {:", `{"a": {"b": [1, 2]}}`},
		{"braces inside strings", `{"message":"use } and { carefully"}`, `{"message":"use } and { carefully"}`},
		{"broken first block", `{"oops": } then {"ok": true}`, `{"ok": true}`},
		{"array", "Result: [{\"q\":\"a\"}]", `[{"q":"a"}]`},
		{"two blocks takes first", `{"n":1} {"n":2}`, `{"n":1}`},
		{"fence wins over prose brackets", "Here is option [1] for you:\n```json\n{\"message\": \"Great job!\"}\n```", `{"message": "Great job!"}`},
		{"plain fence", "Option {a}:\n```\n[\"x\", \"y\"]\n```", `["x", "y"]`},
		{"broken fence falls back", "```json\n{\"a\": \n```\nretry: {\"a\": 1}", `{"a": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ExtractStructured(tc.in)
			if err != nil {
				t.Fatalf("ExtractStructured: %v", err)
			}
			if string(out.Raw) != tc.want {
				t.Errorf("raw = %s, want %s", out.Raw, tc.want)
			}
			if out.Value == nil {
				t.Error("value not decoded")
			}
		})
	}
}

func TestExtractStructuredNoBlock(t *testing.T) {
	for _, in := range []string{"", "I cannot help with that.", "{not json", "```\n{\"a\": \n```"} {
		if _, err := ExtractStructured(in); !errors.Is(err, ErrNoStructuredBlock) {
			t.Errorf("ExtractStructured(%q) error = %v", in, err)
		}
	}
}

func TestParseGenerationKeepsUsage(t *testing.T) {
	gen := &service.Generation{Text: "no json here", Usage: service.Usage{OutputTokens: 42}}
	_, err := parseGeneration("grok", gen)

	var parseErr *service.GenerationParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want GenerationParseError", err)
	}
	if parseErr.Usage.OutputTokens != 42 || parseErr.Provider != "grok" {
		t.Errorf("parse error = %+v", parseErr)
	}
}
