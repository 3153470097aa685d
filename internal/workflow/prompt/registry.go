// Package prompt 管理内嵌的提示词模板
package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptKidStuckV1               PromptID = "kid_stuck_v1"
	PromptSubjectAnalogyV1         PromptID = "subject_analogy_v1"
	PromptParentStruggleGuideV1    PromptID = "parent_struggle_guide_v1"
	PromptTransitionPhraseV1       PromptID = "transition_phrase_v1"
	PromptAchievementCelebrationV1 PromptID = "achievement_celebration_v1"
	PromptTimeGreetingV1           PromptID = "time_greeting_v1"
	PromptReturnMessageV1          PromptID = "return_message_v1"
	PromptGigiPersonalityV1        PromptID = "gigi_personality_v1"
	PromptQALibraryV1              PromptID = "qa_library_v1"
)

var knownPrompts = map[PromptID]struct{}{
	PromptKidStuckV1:               {},
	PromptSubjectAnalogyV1:         {},
	PromptParentStruggleGuideV1:    {},
	PromptTransitionPhraseV1:       {},
	PromptAchievementCelebrationV1: {},
	PromptTimeGreetingV1:           {},
	PromptReturnMessageV1:          {},
	PromptGigiPersonalityV1:        {},
	PromptQALibraryV1:              {},
}

// Registry 缓存已解析的 ChatTemplate
type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	path, err := resolvePromptFile(id)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(path)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(schema.GoTemplate, schema.UserMessage(user))
	r.cache[id] = tpl
	return tpl, nil
}

// Render 渲染用户提示词。系统指令由配置统一提供，不在模板中
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) (string, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format prompt %s: %w", id, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("prompt %s rendered no messages", id)
	}
	out := strings.TrimSpace(msgs[len(msgs)-1].Content)
	if strings.Contains(out, "<no value>") {
		return "", fmt.Errorf("prompt %s references a variable that was not provided", id)
	}
	return out, nil
}

func resolvePromptFile(id PromptID) (string, error) {
	if _, ok := knownPrompts[id]; !ok {
		return "", fmt.Errorf("unknown prompt id: %s", id)
	}
	return "templates/" + string(id) + ".user.txt", nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
