package luna

import "unicode/utf8"

// TokenEstimator estimates how many tokens a prompt will occupy on the
// target completion service. The estimate only has to be good enough
// for the 90%-of-budget check during prompt assembly.
type TokenEstimator func(text string) int

// EstimateTokens is the default estimator: roughly four runes per token,
// rounded up. Plug a real model tokenizer into Persona.Tokens when
// accuracy matters.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Persona is the static configuration of a generation path: who is
// talking, the character prompt, and the context-size budget against
// which history is trimmed.
type Persona struct {
	// AIName labels assistant turns in the prompt and prefixes the
	// generation line; HostName labels user turns.
	AIName   string
	HostName string

	// SystemPrompt is the character text, injected at the lowest
	// priority position (before tool results and chat history).
	SystemPrompt string

	// ContextTokens is the completion service's context size. Prompt
	// assembly targets at most 90% of it.
	ContextTokens int

	// MaxReplyTokens bounds the generated reply.
	MaxReplyTokens int

	// StopStrings terminate generation.
	StopStrings []string

	// Tokens estimates prompt size; nil means EstimateTokens.
	Tokens TokenEstimator
}

func (p Persona) estimate(text string) int {
	if p.Tokens != nil {
		return p.Tokens(text)
	}
	return EstimateTokens(text)
}
