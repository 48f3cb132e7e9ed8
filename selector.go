package luna

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Strategy selects how the Selector narrows the catalog.
type Strategy string

const (
	// StrategyKeyword matches the input against a static keyword table.
	StrategyKeyword Strategy = "keyword"
	// StrategySemantic ranks tools by vector similarity; degrades to
	// keyword matching when the index is unavailable.
	StrategySemantic Strategy = "semantic"
	// StrategyHybrid unions keyword (priority) and semantic results.
	StrategyHybrid Strategy = "hybrid"
	// StrategySmart is reserved for a learned ranking; currently an
	// alias for StrategyHybrid.
	StrategySmart Strategy = "smart"
)

// DefaultMaxTools bounds a selection when the context does not.
const DefaultMaxTools = 6

// fallbackLimit caps the safe static set returned on internal failure.
const fallbackLimit = 3

// SelectionContext is the ephemeral input of one selection call.
type SelectionContext struct {
	UserInput    string
	History      []ChatMessage // recent slice, used for logging context only
	MaxTools     int           // 0 means DefaultMaxTools
	Strategy     Strategy      // "" means StrategyHybrid
	PreferStatic bool
}

// Category maps trigger keywords to the tool names they unlock.
type Category struct {
	Keywords []string
	Tools    []string
}

// defaultCategories is the static keyword table. Unmatched input falls
// back to defaultToolNames.
var defaultCategories = map[string]Category{
	"computation": {
		Keywords: []string{"math", "calculate", "computation", "arithmetic", "add", "subtract", "multiply", "divide", "equation", "solve"},
		Tools:    []string{"calculate_math"},
	},
	"information": {
		Keywords: []string{"weather", "temperature", "climate", "forecast", "rain", "snow", "sunny", "cloudy", "wind"},
		Tools:    []string{"get_weather"},
	},
	"search": {
		Keywords: []string{"search", "find", "look up", "information", "news", "web", "query", "discover"},
		Tools:    []string{"web_search"},
	},
	"entertainment": {
		Keywords: []string{"youtube", "video", "play", "watch"},
		Tools:    []string{"play_youtube_video"},
	},
}

var defaultToolNames = []string{"web_search"}

// SelectionMetrics summarizes selector performance.
type SelectionMetrics struct {
	TotalSelections  int              `json:"total_selections"`
	AverageSelection time.Duration    `json:"average_selection_time"`
	StrategyUsage    map[Strategy]int `json:"strategy_usage"`
}

// Selector narrows the Registry to a ranked, bounded subset relevant to
// a piece of free-text context. It consults the vector index for the
// semantic strategies and never returns an error: any internal failure
// degrades to a small always-available set.
type Selector struct {
	registry   *Registry
	index      VectorIndex // nil disables semantic selection
	categories map[string]Category
	defaults   []string
	logger     *slog.Logger

	mu       sync.Mutex
	total    int
	totalDur time.Duration
	usage    map[Strategy]int
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithSelectorLogger sets a structured logger. Default: discard.
func WithSelectorLogger(l *slog.Logger) SelectorOption {
	return func(s *Selector) { s.logger = l }
}

// WithCategories replaces the built-in keyword table.
func WithCategories(categories map[string]Category) SelectorOption {
	return func(s *Selector) { s.categories = categories }
}

// NewSelector creates a Selector over registry. index may be nil; the
// semantic strategies then behave exactly like keyword selection.
func NewSelector(registry *Registry, index VectorIndex, opts ...SelectorOption) *Selector {
	s := &Selector{
		registry:   registry,
		index:      index,
		categories: defaultCategories,
		defaults:   defaultToolNames,
		usage:      make(map[Strategy]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = nopLogger
	}
	return s
}

// Select returns the context-relevant tool subset, at most
// ctx.MaxTools entries. It never fails: internal errors fall back to up
// to three static tools (empty only when the registry itself is empty).
func (s *Selector) Select(ctx context.Context, sel SelectionContext) (selected []*Entry) {
	start := time.Now()
	strategy := sel.Strategy
	if strategy == "" {
		strategy = StrategyHybrid
	}
	maxTools := sel.MaxTools
	if maxTools <= 0 {
		maxTools = DefaultMaxTools
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool selection panicked, using fallback", "panic", r)
			selected = s.fallback()
		}
		s.record(strategy, time.Since(start))
	}()

	switch strategy {
	case StrategyKeyword:
		selected = s.keywordSelection(sel.UserInput)
	case StrategySemantic:
		selected = s.semanticSelection(ctx, sel.UserInput, maxTools)
	case StrategyHybrid, StrategySmart:
		selected = s.hybridSelection(ctx, sel.UserInput, maxTools)
	default:
		selected = s.hybridSelection(ctx, sel.UserInput, maxTools)
	}

	if sel.PreferStatic {
		selected = prioritizeStatic(selected)
	}
	if len(selected) > maxTools {
		selected = selected[:maxTools]
	}
	s.logger.Info("tools selected",
		"count", len(selected), "strategy", string(strategy),
		"elapsed", time.Since(start))
	return selected
}

// keywordSelection matches lower-cased input substrings against the
// category table. No match yields the default general-purpose tools.
func (s *Selector) keywordSelection(input string) []*Entry {
	lower := strings.ToLower(input)
	seen := make(map[string]bool)
	var matched []*Entry
	for _, name := range s.categoryOrder() {
		cat := s.categories[name]
		hit := false
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		for _, toolName := range cat.Tools {
			if seen[toolName] {
				continue
			}
			if e := s.availableEntry(toolName); e != nil {
				matched = append(matched, e)
				seen[toolName] = true
			}
		}
	}
	if len(matched) == 0 {
		for _, name := range s.defaults {
			if e := s.availableEntry(name); e != nil {
				matched = append(matched, e)
			}
		}
	}
	return matched
}

// semanticSelection queries the vector index; ranked by distance only,
// no threshold. Unavailable or failing index degrades to keyword.
func (s *Selector) semanticSelection(ctx context.Context, input string, maxTools int) []*Entry {
	if s.index == nil {
		s.logger.Warn("vector index not available, falling back to keyword selection")
		return s.keywordSelection(input)
	}
	matches, err := s.index.Query(ctx, input, maxTools*2, map[string]string{"type": "tool_description"})
	if err != nil {
		s.logger.Error("semantic selection failed, falling back to keyword", "error", err)
		return s.keywordSelection(input)
	}
	var out []*Entry
	for _, m := range matches {
		name := m.Metadata["tool_name"]
		if name == "" {
			continue
		}
		if e := s.availableEntry(name); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// hybridSelection unions keyword results (priority) with semantic
// results deduplicated against them.
func (s *Selector) hybridSelection(ctx context.Context, input string, maxTools int) []*Entry {
	keyword := s.keywordSelection(input)
	inKeyword := make(map[string]bool, len(keyword))
	for _, e := range keyword {
		inKeyword[e.Name()] = true
	}

	combined := keyword
	for _, e := range s.semanticSelection(ctx, input, maxTools) {
		if inKeyword[e.Name()] || len(combined) >= maxTools {
			continue
		}
		combined = append(combined, e)
		inKeyword[e.Name()] = true
	}
	return combined
}

// prioritizeStatic stable-sorts static tools ahead of dynamic ones.
func prioritizeStatic(entries []*Entry) []*Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Kind() == ToolStatic && entries[j].Kind() != ToolStatic
	})
	return entries
}

// fallback returns up to three static tools, the safe set for error
// situations.
func (s *Selector) fallback() []*Entry {
	static := s.registry.ByKind(ToolStatic)
	sort.Slice(static, func(i, j int) bool { return static[i].Name() < static[j].Name() })
	if len(static) > fallbackLimit {
		static = static[:fallbackLimit]
	}
	return static
}

func (s *Selector) availableEntry(name string) *Entry {
	e := s.registry.Get(name)
	if e == nil || e.Status() != ToolAvailable {
		return nil
	}
	return e
}

// categoryOrder returns category names sorted for deterministic
// iteration.
func (s *Selector) categoryOrder() []string {
	names := make([]string, 0, len(s.categories))
	for name := range s.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Selector) record(strategy Strategy, d time.Duration) {
	s.mu.Lock()
	s.total++
	s.totalDur += d
	s.usage[strategy]++
	s.mu.Unlock()
}

// Metrics returns selection performance counters.
func (s *Selector) Metrics() SelectionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := SelectionMetrics{
		TotalSelections: s.total,
		StrategyUsage:   make(map[Strategy]int, len(s.usage)),
	}
	if s.total > 0 {
		m.AverageSelection = s.totalDur / time.Duration(s.total)
	}
	for k, v := range s.usage {
		m.StrategyUsage[k] = v
	}
	return m
}

// IndexTools writes one searchable document per registered tool into
// the vector index: name, description, kind, category, and keywords.
// Call after registration and again when the catalog changes.
func (s *Selector) IndexTools(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	for _, e := range s.registry.Available() {
		spec := e.Spec()
		doc := "Tool: " + spec.Name + "\nDescription: " + spec.Description +
			"\nType: " + e.Kind().String()
		meta := map[string]string{
			"type":      "tool_description",
			"tool_name": spec.Name,
			"kind":      e.Kind().String(),
		}
		if cat, keywords := s.categoryOf(spec.Name); cat != "" {
			doc += "\nKeywords: " + strings.Join(keywords, ", ")
			meta["category"] = cat
		}
		if err := s.index.Upsert(ctx, "tool_"+spec.Name, doc, meta); err != nil {
			return err
		}
	}
	return nil
}

func (s *Selector) categoryOf(toolName string) (string, []string) {
	for name, cat := range s.categories {
		for _, t := range cat.Tools {
			if t == toolName {
				return name, cat.Keywords
			}
		}
	}
	return "", nil
}
