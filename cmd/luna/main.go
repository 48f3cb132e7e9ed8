package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	luna "github.com/lunasparkai/luna"
	"github.com/lunasparkai/luna/index/sqlindex"
	"github.com/lunasparkai/luna/internal/config"
	"github.com/lunasparkai/luna/internal/wsserver"
	"github.com/lunasparkai/luna/observer"
	"github.com/lunasparkai/luna/provider/openaicompat"
	"github.com/lunasparkai/luna/tools/calc"
	"github.com/lunasparkai/luna/tools/clock"
	"github.com/lunasparkai/luna/tools/weather"
	"github.com/lunasparkai/luna/tools/websearch"
	"github.com/lunasparkai/luna/tools/youtube"
)

// consoleSpeech stands in for the external speech engines. Presentation
// clients receive AI_response over the websocket and do their own TTS;
// the console build just logs the line.
type consoleSpeech struct {
	logger *slog.Logger
}

func (c *consoleSpeech) Ready() bool { return true }
func (c *consoleSpeech) Speak(text string) {
	c.logger.Info("speaking", "text", text)
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	// 1. Config + persona
	cfg := config.Load(os.Getenv("LUNA_CONFIG"))

	systemPrompt := ""
	if cfg.Persona.SystemPromptPath != "" {
		data, err := os.ReadFile(cfg.Persona.SystemPromptPath)
		if err != nil {
			logger.Warn("system prompt not readable, continuing without", "path", cfg.Persona.SystemPromptPath, "error", err)
		} else {
			systemPrompt = string(data)
		}
	}
	persona := luna.Persona{
		AIName:         cfg.Persona.AIName,
		HostName:       cfg.Persona.HostName,
		SystemPrompt:   systemPrompt,
		ContextTokens:  cfg.Persona.ContextTokens,
		MaxReplyTokens: cfg.Text.MaxTokens,
		StopStrings:    cfg.Persona.StopStrings,
	}

	// 2. Core state + content filter
	state := luna.NewState()
	filter, err := luna.LoadBlacklist(cfg.Filter.BlacklistPath)
	if err != nil {
		return err
	}
	filter.OnChange = func(words []string) {
		state.Events().Push(luna.Event{Name: luna.EventBlacklist, Payload: words})
	}

	// 3. Providers
	textLLM := openaicompat.NewClient(cfg.Text.APIKey, cfg.Text.Model, cfg.Text.BaseURL,
		openaicompat.WithLogger(logger))
	toolLLM := openaicompat.NewClient(cfg.Tools.APIKey, cfg.Tools.Model, cfg.Tools.BaseURL,
		openaicompat.WithLogger(logger))
	embedder := openaicompat.NewClient(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL,
		openaicompat.WithLogger(logger))

	// 4. Vector index for semantic tool selection
	index, err := sqlindex.New(cfg.Index.Path, embedder, sqlindex.WithLogger(logger))
	if err != nil {
		return err
	}
	defer index.Close()
	if err := index.Init(ctx); err != nil {
		return err
	}

	// 5. Instrumentation + tool registry. Instrumentation is optional;
	// when enabled it records against the global OTel providers, which a
	// deployment points at a real backend.
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		inst, err = observer.NewInstruments()
		if err != nil {
			return err
		}
	}
	registry := luna.NewRegistry(luna.WithRegistryLogger(logger))
	register := func(tool luna.Tool, kind luna.ToolKind, group string) {
		if inst != nil {
			tool = observer.WrapTool(tool, inst)
		}
		registry.Register(tool, kind, group)
	}
	register(clock.New(), luna.ToolStatic, "utility")
	register(calc.New(), luna.ToolStatic, "computation")
	register(websearch.New(), luna.ToolStatic, "search")
	register(weather.New(), luna.ToolDynamic, "information")
	register(youtube.New(), luna.ToolDynamic, "entertainment")

	selector := luna.NewSelector(registry, index, luna.WithSelectorLogger(logger))
	if err := selector.IndexTools(ctx); err != nil {
		logger.Warn("tool indexing failed, semantic selection degraded", "error", err)
	}

	// 6. Generation paths
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	responder := luna.NewResponder(rng)
	speech := &consoleSpeech{logger: logger}

	// The multimodal path additionally needs a host-side FrameCapturer;
	// hosts that have one wire it with NewVisionGenerator and
	// WithVisionPath. The console build runs text-only.
	text := luna.NewTextGenerator(state, textLLM, persona,
		luna.WithSpeech(speech),
		luna.WithFilter(filter),
		luna.WithGeneratorLogger(logger))

	toolPass := luna.NewToolPass(state, toolLLM, registry, selector, responder, persona,
		luna.WithToolStrategy(luna.Strategy(cfg.Turn.Strategy)),
		luna.WithToolLimit(cfg.Turn.MaxTools),
		luna.WithToolPassLogger(logger))

	var textPath luna.Generator = text
	if inst != nil {
		textPath = observer.WrapGenerator(text, inst, "text")
	}

	scheduler := luna.NewScheduler(state, textPath, toolPass,
		luna.WithSpeechEngines(speech, speech),
		luna.WithPatience(cfg.Patience()),
		luna.WithTick(cfg.Tick()),
		luna.WithSchedulerLogger(logger))

	// 7. Presentation server
	server := wsserver.New(state, filter,
		wsserver.WithLogger(logger),
		wsserver.WithMaxChatLength(cfg.Server.MaxChatLength),
		wsserver.WithChatBacklog(cfg.Server.ChatBacklog))

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: server.Handler()}
	go func() {
		logger.Info("websocket server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server failed", "error", err)
		}
	}()
	go server.Run(ctx)

	logger.Info("agent running",
		"ai", persona.AIName,
		"host", persona.HostName,
		"patience", cfg.Patience())

	err = scheduler.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
