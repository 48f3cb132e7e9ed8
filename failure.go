package luna

import (
	"math/rand"
	"strings"
	"sync"
)

// FailureCategory classifies a tool execution failure.
type FailureCategory string

const (
	FailureExecution   FailureCategory = "execution_error"
	FailureNetwork     FailureCategory = "network_error"
	FailureParameters  FailureCategory = "invalid_parameters"
	FailureUnavailable FailureCategory = "service_unavailable"
	FailureTimeout     FailureCategory = "timeout"
	FailureUnknown     FailureCategory = "unknown"
)

// Classify maps an error message to a failure category by substring
// inspection, in fixed priority order. The category is deterministic
// for a given message even though fallback wording is randomized.
func Classify(errMsg string) FailureCategory {
	msg := strings.ToLower(errMsg)
	switch {
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection"):
		return FailureNetwork
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return FailureTimeout
	case strings.Contains(msg, "parameter") || strings.Contains(msg, "invalid"):
		return FailureParameters
	case strings.Contains(msg, "service") || strings.Contains(msg, "unavailable"):
		return FailureUnavailable
	case msg != "" && msg != "unknown error":
		return FailureExecution
	default:
		return FailureUnknown
	}
}

// Fallback is the human-presentable response to a tool failure.
type Fallback struct {
	Category        FailureCategory `json:"category"`
	Line            string          `json:"line"`
	SuggestedAction string          `json:"suggested_action"`
	Mood            string          `json:"mood"`
}

// emergencyFallback is returned when response generation itself fails.
var emergencyFallback = Fallback{
	Category:        FailureUnknown,
	Line:            "Welp, that didn't go as planned - you'll have to handle this one yourself!",
	SuggestedAction: "Try handling this manually",
	Mood:            "sheepish",
}

// Responder maps a tool failure to a friendly, mood-flavored fallback
// line. Per-tool message sets take precedence over the generic
// per-category sets; the pick among candidates is randomized on
// purpose, the category never is. Safe for concurrent use.
type Responder struct {
	mu       sync.Mutex
	perTool  map[string]map[FailureCategory][]string
	generic  map[FailureCategory][]string
	actions  map[string]string
	moods    map[FailureCategory]string
	rng      *rand.Rand
}

// NewResponder creates a Responder with the built-in message sets.
// rng may be nil to use the global source.
func NewResponder(rng *rand.Rand) *Responder {
	return &Responder{
		perTool: map[string]map[FailureCategory][]string{
			"play_youtube_video": {
				FailureExecution: {
					"Hmm, having trouble opening that video right now - try searching YouTube directly!",
					"YouTube's being a bit cranky today, you might want to search for it manually!",
					"Oops, couldn't get that video to play - maybe check YouTube directly?",
				},
				FailureNetwork: {
					"Network's acting up - you'll have to hunt down that video yourself!",
					"Can't reach YouTube right now, but I'm sure that song is worth finding!",
				},
				FailureParameters: {
					"Need a bit more info about what you want to play!",
					"Could you be more specific about which video you're looking for?",
				},
			},
			"get_weather": {
				FailureExecution: {
					"Weather service is having a cloudy day - try checking your weather app!",
					"Can't get the forecast right now, but looking outside usually works!",
					"Weather data is MIA - maybe peek out the window?",
				},
				FailureNetwork: {
					"Can't reach the weather service - time for the old-fashioned window check!",
				},
			},
			"calculate_math": {
				FailureExecution: {
					"Math brain is taking a break - try a calculator!",
					"Numbers aren't cooperating today - calculator to the rescue!",
					"My math circuits are fried - better grab a calculator!",
				},
			},
			"web_search": {
				FailureExecution: {
					"Search isn't working right now - try Google directly!",
					"Web search is being stubborn - manual hunting time!",
					"Search engine's on strike - you'll have to investigate yourself!",
				},
			},
		},
		generic: map[FailureCategory][]string{
			FailureExecution: {
				"Oops, that didn't work as expected - might need to try a different approach!",
				"Hit a snag there - you might want to handle this one manually!",
				"Something went wrong on my end - better tackle this yourself!",
				"That tool's acting up - manual mode might be your best bet!",
			},
			FailureNetwork: {
				"Connection issues are cramping my style - try again later!",
				"Network's being moody - you might have better luck in a bit!",
				"Can't reach the service right now - manual approach recommended!",
			},
			FailureParameters: {
				"Need a bit more detail to help you with that!",
				"Could use some clarification on what you're looking for!",
				"That request needs a bit more specificity!",
			},
			FailureUnavailable: {
				"That service is taking a nap - try again later!",
				"Service is temporarily down - manual approach recommended!",
				"That tool's offline right now - you'll have to handle this one!",
			},
			FailureTimeout: {
				"That took way too long - the service might be overloaded!",
				"Request timed out - try again or handle it manually!",
				"Too slow on the response - better try a different approach!",
			},
			FailureUnknown: {
				"Something mysterious happened - better handle this manually!",
				"Ran into an unknown issue - you might have better luck doing it yourself!",
				"Hit an unexpected snag - time for the manual approach!",
			},
		},
		actions: map[string]string{
			"play_youtube_video": "Try searching YouTube directly in your browser",
			"get_weather":        "Check your weather app or look outside",
			"calculate_math":     "Use a calculator app or device",
			"web_search":         "Try Google or your preferred search engine",
		},
		moods: map[FailureCategory]string{
			FailureExecution:   "apologetic",
			FailureNetwork:     "frustrated",
			FailureParameters:  "confused",
			FailureUnavailable: "disappointed",
			FailureTimeout:     "impatient",
			FailureUnknown:     "puzzled",
		},
		rng: rng,
	}
}

// Respond builds the fallback for a failed tool. It never fails: a
// panic inside response generation yields the fixed emergency fallback.
func (r *Responder) Respond(toolName, errMsg string) (fb Fallback) {
	defer func() {
		if rec := recover(); rec != nil {
			fb = emergencyFallback
		}
	}()

	category := Classify(errMsg)
	return Fallback{
		Category:        category,
		Line:            r.pickMessage(toolName, category),
		SuggestedAction: r.suggestedAction(toolName),
		Mood:            r.mood(category),
	}
}

// AddToolMessages installs or extends a per-tool specialized message
// set.
func (r *Responder) AddToolMessages(toolName string, messages map[FailureCategory][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.perTool[toolName] == nil {
		r.perTool[toolName] = make(map[FailureCategory][]string)
	}
	for cat, lines := range messages {
		r.perTool[toolName][cat] = append(r.perTool[toolName][cat], lines...)
	}
}

func (r *Responder) pickMessage(toolName string, category FailureCategory) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byTool, ok := r.perTool[toolName]; ok {
		if lines, ok := byTool[category]; ok && len(lines) > 0 {
			return lines[r.intn(len(lines))]
		}
	}
	if lines, ok := r.generic[category]; ok && len(lines) > 0 {
		return lines[r.intn(len(lines))]
	}
	return "Something went wrong - you might want to handle this manually!"
}

func (r *Responder) suggestedAction(toolName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if action, ok := r.actions[toolName]; ok {
		return action
	}
	return "Try handling this manually or retry later"
}

func (r *Responder) mood(category FailureCategory) string {
	if mood, ok := r.moods[category]; ok {
		return mood
	}
	return "neutral"
}

func (r *Responder) intn(n int) int {
	if r.rng != nil {
		return r.rng.Intn(n)
	}
	return rand.Intn(n)
}
