package usecases

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

const (
	toolPrompt = "[TOOLPROMPT] You may use live search and APIs to fetch current or external information. " +
		"Use these sources when needed and cite them where possible.\n"
	contextPrefix     = "Use the following context and cite [n] where applicable.\n\n"
	noContextNote     = "No external context was found. Answer from your own knowledge and say so when unsure."
	thinkingPrefix    = "First give your reasoning between <think>...</think> and then the final answer between <final>...</final>.\n\n"
	defaultGPTOSSSys  = "You are a helpful assistant."
	answerLanguageFmt = "\nAnswer in language code '%s' unless asked otherwise."
)

// MessageInput holds what BuildMessages assembles.
type MessageInput struct {
	SystemPrompt        string
	UserPrompt          string
	ContextBlock        string
	ForceContext        bool
	Thinking            bool
	AnswerLanguage      string
	ContextMessagesJSON string
	History             []entities.Message
	Images              []string
	Multimodal          bool
}

// BuildMessages returns, in order: the system prompt, chained history,
// manual prior turns, the context message and the user message.
func BuildMessages(in MessageInput) []entities.Message {
	var msgs []entities.Message

	sys := strings.TrimSpace(in.SystemPrompt)
	if in.AnswerLanguage != "" {
		sys = strings.TrimSpace(sys + fmt.Sprintf(answerLanguageFmt, in.AnswerLanguage))
	}
	if sys != "" {
		msgs = append(msgs, entities.Message{Role: entities.RoleSystem, Content: sys})
	}

	msgs = append(msgs, in.History...)
	msgs = append(msgs, ParseContextMessages(in.ContextMessagesJSON)...)

	switch {
	case in.ContextBlock != "":
		msgs = append(msgs, entities.Message{Role: entities.RoleSystem, Content: contextPrefix + in.ContextBlock})
	case in.ForceContext:
		msgs = append(msgs, entities.Message{Role: entities.RoleSystem, Content: noContextNote})
	}

	user := entities.Message{Role: entities.RoleUser, Content: in.UserPrompt}
	if in.Thinking {
		user.Content = thinkingPrefix + user.Content
	}
	if in.Multimodal && len(in.Images) > 0 {
		user.Images = in.Images
	}
	return append(msgs, user)
}

// ParseContextMessages reads manually supplied prior turns. Entries without
// both a role and content are skipped; a parse error becomes a system note.
func ParseContextMessages(raw string) []entities.Message {
	items, err := textutil.ParseJSONSafe[[]any](raw, nil)
	if err != nil {
		return []entities.Message{{
			Role:    entities.RoleSystem,
			Content: fmt.Sprintf("Note: previous context parse failed: %v", err),
		}}
	}

	var msgs []entities.Message
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		role, hasRole := m["role"]
		content, hasContent := m["content"]
		if !hasRole || !hasContent {
			continue
		}
		msgs = append(msgs, entities.Message{
			Role:    entities.Role(stringify(role)),
			Content: stringify(content),
		})
	}
	return msgs
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// InjectToolPrompt prefixes the system prompt with the tool instruction.
func InjectToolPrompt(systemPrompt string, enabled bool) string {
	if !enabled {
		return systemPrompt
	}
	return toolPrompt + systemPrompt
}

// HarmonizeGPTOSS collapses the messages into one gpt-oss style prelude
// when enabled and the model name looks like gpt-oss.
func HarmonizeGPTOSS(model string, msgs []entities.Message, enabled bool) []entities.Message {
	if !enabled || !strings.Contains(strings.ToLower(model), "gpt-oss") {
		return msgs
	}
	join := func(role entities.Role) string {
		parts := lo.FilterMap(msgs, func(m entities.Message, _ int) (string, bool) {
			return m.Content, m.Role == role
		})
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	sys := textutil.FirstNonEmpty(join(entities.RoleSystem), defaultGPTOSSSys)
	return []entities.Message{{
		Role:    entities.RoleSystem,
		Content: "<|start|><|system|>" + sys + "<|user|>" + join(entities.RoleUser) + "<|assistant|>",
	}}
}

// MergeHistory appends next to prev and keeps the last maxTurns*2 messages.
func MergeHistory(prev, next []entities.Message, maxTurns int) []entities.Message {
	all := make([]entities.Message, 0, len(prev)+len(next))
	all = append(all, prev...)
	all = append(all, next...)
	if limit := maxTurns * 2; maxTurns > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}
