package luna

import (
	"sort"
	"strings"
)

// injection is one prompt fragment with an assembly priority. Lower
// priority assembles first. The system prompt sits at 10, tool-result
// narratives at 30, and the chat section at 100, matching the layout
// the persona prompts were written against.
type injection struct {
	text     string
	priority int
}

const (
	prioritySystem      = 10
	priorityToolResults = 30
	priorityChat        = 100
)

// assembleInjections concatenates fragments in increasing priority
// order. The sort is stable so equal priorities keep insertion order.
func assembleInjections(injections []injection) string {
	sort.SliceStable(injections, func(i, j int) bool {
		return injections[i].priority < injections[j].priority
	})
	var b strings.Builder
	for _, inj := range injections {
		b.WriteString(inj.text)
	}
	return b.String()
}

// renderToolOutcomes converts staged tool outcomes into the narrative
// fragment injected between the system prompt and the chat history.
// Any failure-status outcome collapses the whole narrative into a
// recovery instruction so the primary path apologizes instead of
// parroting raw errors. Returns "" when there is nothing to inject.
func renderToolOutcomes(outcomes []ToolOutcome) string {
	var parts []string
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSuccess:
			parts = append(parts, "Retrieved information: "+o.Output)
		case OutcomeNoToolsNeeded, OutcomeNoToolCalls, OutcomeFailed, OutcomeError:
			line := "\nThe external lookup couldn't be completed right now."
			if o.Message != "" {
				line += " " + o.Message
			}
			line += " Apologize briefly and provide a helpful alternative response based on your knowledge.\n"
			return line
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "\nRelevant information found:\n" + strings.Join(parts, "\n") + "\nUse this information to provide an accurate response.\n"
}

// labelMessages prefixes each non-empty history entry with its speaker
// name. Operates on the slice it is given; callers pass a copy.
func labelMessages(messages []ChatMessage, persona Persona) {
	for i, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case RoleUser:
			messages[i].Content = persona.HostName + ": " + m.Content + "\n"
		case RoleAssistant:
			messages[i].Content = persona.AIName + ": " + m.Content + "\n"
		}
	}
}

// BuildPrompt assembles the full generation prompt: persona system
// prompt, optional tool-result narrative, and the labeled chat history,
// terminated with the AI-name generation prefix.
//
// If the token estimate reaches 90% of the context budget the oldest
// history entry is dropped and assembly retries; running out of history
// while still oversized returns ErrPromptTooLong, which callers must
// treat as configuration-fatal. The stored history is never mutated —
// only the local copy shrinks.
func BuildPrompt(history []ChatMessage, outcomes []ToolOutcome, persona Persona) (string, error) {
	messages := make([]ChatMessage, len(history))
	copy(messages, history)
	labelMessages(messages, persona)

	toolNarrative := renderToolOutcomes(outcomes)

	for {
		var chat strings.Builder
		for _, m := range messages {
			chat.WriteString(m.Content)
		}

		injections := []injection{{persona.SystemPrompt, prioritySystem}}
		if toolNarrative != "" {
			injections = append(injections, injection{toolNarrative, priorityToolResults})
		}
		injections = append(injections, injection{chat.String(), priorityChat})

		prompt := assembleInjections(injections) + persona.AIName + ": "

		if float64(persona.estimate(prompt)) < 0.9*float64(persona.ContextTokens) {
			return prompt, nil
		}
		if len(messages) == 0 {
			return "", ErrPromptTooLong
		}
		messages = messages[1:]
	}
}
