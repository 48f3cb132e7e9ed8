package luna

import "context"

// VisionGenerator is the screen-aware generation path: identical to the
// text path except that a captured frame of the host screen accompanies
// the prompt.
type VisionGenerator struct {
	core     genCore
	capturer FrameCapturer
}

// NewVisionGenerator creates a multimodal generator.
func NewVisionGenerator(state *State, provider Completer, persona Persona, capturer FrameCapturer, opts ...GeneratorOption) *VisionGenerator {
	g := &VisionGenerator{
		core: genCore{
			state:    state,
			provider: provider,
			persona:  persona,
			logger:   nopLogger,
		},
		capturer: capturer,
	}
	for _, opt := range opts {
		opt(&g.core)
	}
	return g
}

// Run executes one multimodal generation turn. A failed frame capture
// degrades to a text-only turn rather than losing the turn.
func (g *VisionGenerator) Run(ctx context.Context) error {
	g.core.state.SetImageThinking(true)
	defer g.core.state.SetImageThinking(false)

	if g.capturer == nil {
		return g.core.run(ctx, nil)
	}
	frame, err := g.capturer.CaptureFrame(ctx)
	if err != nil {
		g.core.logger.Warn("frame capture failed, continuing text-only", "error", err)
		return g.core.run(ctx, nil)
	}
	return g.core.run(ctx, []ImageData{frame})
}
