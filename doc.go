// Package luna is the turn-orchestration core for a conversational
// VTuber agent. It decides when the agent speaks, which generation path
// produces the reply (plain text, screen-aware multimodal, or a
// tool-augmented pass), and keeps one shared conversation state
// consistent while those passes run concurrently.
//
// # Building blocks
//
//   - [State] — the single shared conversation record: message history,
//     activity flags, pending tool results, and the outbound event
//     stream consumed by presentation clients.
//   - [Scheduler] — the cooperative polling loop that triggers primary
//     generations and dispatches at most one tool pass at a time.
//   - [TextGenerator] / [VisionGenerator] — the primary generation
//     paths. They assemble a persona prompt from State, stream a
//     completion, and append the cleaned reply to history.
//   - [ToolPass] — the auxiliary generation path. It never writes to
//     history; its results land in State as pending tool results that
//     the next primary turn folds into its prompt.
//   - [Registry] and [Selector] — the tool catalog and the subsystem
//     that narrows it to a context-relevant subset per invocation.
//   - [Responder] — maps tool failures to friendly fallback lines.
//
// # Wiring
//
// Everything is constructed explicitly and passed in; there is no
// package-level mutable state:
//
//	state := luna.NewState()
//	reg := luna.NewRegistry()
//	reg.Register(calc.New(), luna.ToolStatic, "computation")
//	sel := luna.NewSelector(reg, index)
//	responder := luna.NewResponder(nil)
//	text := luna.NewTextGenerator(state, provider, persona, luna.WithFilter(filter))
//	pass := luna.NewToolPass(state, toolProvider, reg, sel, responder, persona)
//	sched := luna.NewScheduler(state, text, pass, luna.WithVisionPath(vision, gate))
//	go sched.Run(ctx)
//
// Completion services, the vector index behind the semantic tool
// selector, speech engines, and the websocket presentation channel are
// collaborators behind narrow interfaces; see the provider/openaicompat,
// index/sqlindex, and internal/wsserver packages.
package luna
