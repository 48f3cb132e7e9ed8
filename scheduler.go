package luna

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultTick is the scheduler poll interval.
	DefaultTick = 100 * time.Millisecond
	// DefaultPatience is how long the idle clock runs before the agent
	// speaks unprompted.
	DefaultPatience = 60 * time.Second
)

// Generator is one generation path the scheduler can dispatch.
type Generator interface {
	Run(ctx context.Context) error
}

// Scheduler is the turn arbiter. It polls the shared state on a fixed
// tick and decides, one trigger per tick, whether to dispatch a tool
// pass or a generation turn. Generation runs inline so at most one
// turn is in flight; the tool pass runs on its own goroutine with
// single-flight admission.
type Scheduler struct {
	state    *State
	text     Generator
	vision   Generator
	toolPass *ToolPass
	gate     MultimodalGate
	stt      SpeechInput
	tts      SpeechOutput
	patience time.Duration
	tick     time.Duration
	logger   *slog.Logger
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithVisionPath installs the multimodal generation path and the gate
// that chooses it over the text path per turn.
func WithVisionPath(vision Generator, gate MultimodalGate) SchedulerOption {
	return func(s *Scheduler) {
		s.vision = vision
		s.gate = gate
	}
}

// WithSpeechEngines lets the scheduler track engine readiness each
// tick. Without them the state's readiness flags are taken as-is.
func WithSpeechEngines(stt SpeechInput, tts SpeechOutput) SchedulerOption {
	return func(s *Scheduler) {
		s.stt = stt
		s.tts = tts
	}
}

// WithPatience overrides the idle interval before unprompted speech.
func WithPatience(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.patience = d
		}
	}
}

// WithTick overrides the poll interval.
func WithTick(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithSchedulerLogger sets the logger. Defaults to a no-op logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a Scheduler driving the given paths.
func NewScheduler(state *State, text Generator, toolPass *ToolPass, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		state:    state,
		text:     text,
		toolPass: toolPass,
		patience: DefaultPatience,
		tick:     DefaultTick,
		logger:   nopLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the scheduler until the context is cancelled, the state
// is terminated, or generation reports an unrecoverable error.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var toolDone chan struct{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if s.state.Terminated() {
			return nil
		}

		if toolDone != nil {
			select {
			case <-toolDone:
				toolDone = nil
			default:
			}
		}

		if err := s.step(ctx, &toolDone); err != nil {
			return err
		}
	}
}

// step is one tick of the arbitration loop. Exactly one trigger fires
// per tick; the checks run in fixed priority order.
func (s *Scheduler) step(ctx context.Context, toolDone *chan struct{}) error {
	st := s.state

	if s.stt != nil {
		st.SetSTTReady(s.stt.Ready())
	}
	if s.tts != nil {
		st.SetTTSReady(s.tts.Ready())
	}

	// Tool dispatch runs before the readiness and activity gates: a
	// staged request must not wait out TTS playback or engine warmup.
	// Single-flight admission is the only gate.
	if *toolDone == nil && st.ToolPassNeeded() {
		if request, ok := st.TakeToolRequest(); ok {
			done := make(chan struct{})
			*toolDone = done
			go func() {
				defer close(done)
				s.toolPass.Run(ctx, request)
			}()
			return nil
		}
	}

	// Engines warming up must not accrue idle time.
	if !st.Ready() {
		st.TouchLastMessage()
		return nil
	}

	elapsed := time.Since(st.LastMessageTime())
	st.Events().Push(Event{Name: EventPatienceUpdate, Payload: PatienceUpdate{
		Current: elapsed.Seconds(),
		Total:   s.patience.Seconds(),
	}})

	if st.HumanSpeaking() || st.AISpeaking() || st.AIThinking() {
		return nil
	}

	if !st.GenerationEnabled() {
		return nil
	}

	switch {
	case st.NewMessage() || st.QueuedChatCount() > 0:
		return s.generate(ctx)
	case elapsed >= s.patience:
		st.TouchLastMessage()
		return s.generate(ctx)
	}
	return nil
}

// generate dispatches one turn on the multimodal path when the gate
// asks for it, otherwise on the text path. Only a prompt that cannot
// fit the context budget at all is unrecoverable.
func (s *Scheduler) generate(ctx context.Context) error {
	gen := s.text
	if s.vision != nil && s.gate != nil && s.gate.MultimodalNow() {
		gen = s.vision
	}
	if err := gen.Run(ctx); err != nil {
		if errors.Is(err, ErrPromptTooLong) {
			s.logger.Error("prompt exceeds context budget with no history to drop", "error", err)
			s.state.Terminate()
			return err
		}
		s.logger.Warn("generation turn failed", "error", err)
	}
	return nil
}
