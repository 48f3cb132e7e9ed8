package luna

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// toolTriggerPattern matches the inline marker the primary model emits
// when it decides a dedicated tool pass is needed. The capture group is
// the natural-language tool request; the marker never reaches speech or
// history.
var toolTriggerPattern = regexp.MustCompile(`\[TOOL_TRIGGER:(.*?)\]`)

const streamBuffer = 32

// genCore holds the machinery shared by the text and vision generation
// paths: prompt assembly, streamed completion with cancellation, marker
// extraction, content filtering, and delivery.
type genCore struct {
	state    *State
	provider Completer
	persona  Persona
	filter   *Blacklist
	speech   SpeechOutput
	logger   *slog.Logger
}

// GeneratorOption customizes a generator.
type GeneratorOption func(*genCore)

// WithSpeech routes finished replies to a text-to-speech engine.
func WithSpeech(out SpeechOutput) GeneratorOption {
	return func(g *genCore) { g.speech = out }
}

// WithFilter screens finished replies against a blacklist before they
// are spoken or recorded.
func WithFilter(bl *Blacklist) GeneratorOption {
	return func(g *genCore) { g.filter = bl }
}

// WithGeneratorLogger sets the logger. Defaults to a no-op logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *genCore) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// TextGenerator produces one spoken reply per Run call on the plain
// text path.
type TextGenerator struct {
	core genCore
}

// NewTextGenerator creates a text-path generator.
func NewTextGenerator(state *State, provider Completer, persona Persona, opts ...GeneratorOption) *TextGenerator {
	g := &TextGenerator{core: genCore{
		state:    state,
		provider: provider,
		persona:  persona,
		logger:   nopLogger,
	}}
	for _, opt := range opts {
		opt(&g.core)
	}
	return g
}

// Run executes one full text generation turn. The thinking flag is set
// for exactly the duration of the turn. Provider failures end the turn
// without output; only ErrPromptTooLong is returned, since it means the
// configuration cannot produce any prompt at all.
func (g *TextGenerator) Run(ctx context.Context) error {
	g.core.state.SetTextThinking(true)
	defer g.core.state.SetTextThinking(false)
	return g.core.run(ctx, nil)
}

// run is one generation turn: drain queued chat into history, assemble
// the prompt from history plus any staged tool outcomes, stream the
// completion, then extract the tool marker, filter, record, and speak.
func (g *genCore) run(ctx context.Context, images []ImageData) error {
	s := g.state
	s.ClearCancel()
	s.SetNewMessage(false)

	for _, in := range s.TakeChatMessages() {
		if strings.TrimSpace(in.Text) == "" {
			continue
		}
		s.AppendHistory(ChatMessage{Role: RoleUser, Content: in.Text})
	}

	outcomes := s.TakePendingToolResults()
	prompt, err := BuildPrompt(s.History(), outcomes, g.persona)
	if err != nil {
		return err
	}
	s.Events().Push(Event{Name: EventFullPrompt, Payload: prompt})

	req := CompletionRequest{
		Prompt:    prompt,
		Images:    images,
		MaxTokens: g.persona.MaxReplyTokens,
		Stop:      g.persona.StopStrings,
	}

	type result struct {
		resp CompletionResponse
		err  error
	}
	ch := make(chan StreamDelta, streamBuffer)
	done := make(chan result, 1)
	go func() {
		resp, err := g.provider.Complete(ctx, req, ch)
		done <- result{resp, err}
	}()

	var b strings.Builder
	cancelled := false
	for delta := range ch {
		if cancelled {
			continue
		}
		if s.CancelPending() {
			cancelled = true
			continue
		}
		b.WriteString(delta.Content)
	}
	res := <-done

	if cancelled {
		s.ClearCancel()
		s.Events().Push(Event{Name: EventResetNextMessage})
		g.logger.Info("reply cancelled mid-stream, discarding")
		return nil
	}
	if res.err != nil {
		g.logger.Warn("completion failed", "error", res.err)
		return nil
	}

	text := b.String()
	if text == "" {
		text = res.resp.Content
	}

	if m := toolTriggerPattern.FindStringSubmatch(text); m != nil {
		if request := strings.TrimSpace(m[1]); request != "" {
			s.RequestToolPass(request)
			g.logger.Debug("tool pass requested", "request", request)
		}
		text = toolTriggerPattern.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if g.filter != nil && g.filter.Filtered(text) {
		g.logger.Info("reply hit content filter, substituting placeholder")
		text = FilteredPlaceholder
		s.Events().Push(Event{Name: EventResetNextMessage})
	}

	s.AppendHistory(ChatMessage{Role: RoleAssistant, Content: text})
	s.TouchLastMessage()
	s.Events().Push(Event{Name: EventAIResponse, Payload: text})
	if g.speech != nil {
		g.speech.Speak(text)
	}
	return nil
}
