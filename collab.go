package luna

import "context"

// External collaborators are consumed through the narrow interfaces
// below. Their internal mechanics (audio devices, avatar protocol,
// screen capture) are out of scope for the core.

// SpeechInput is the speech-to-text engine boundary.
type SpeechInput interface {
	Ready() bool
}

// SpeechOutput is the text-to-speech engine boundary. Speak must not
// block the caller beyond starting playback.
type SpeechOutput interface {
	Ready() bool
	Speak(text string)
}

// MultimodalGate decides per turn whether the screen-aware multimodal
// path should be used instead of plain text.
type MultimodalGate interface {
	MultimodalNow() bool
}

// FrameCapturer grabs one frame of the host screen for the multimodal
// path.
type FrameCapturer interface {
	CaptureFrame(ctx context.Context) (ImageData, error)
}

// Completer is the external completion service boundary. It streams
// incremental content into ch (closing it when the stream ends) and
// returns the fully accumulated response, including any structured tool
// calls. Transport failures are returned as errors; the caller treats
// them as end-of-turn, never as fatal.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest, ch chan<- StreamDelta) (CompletionResponse, error)
}

// VectorIndex is the external vector-similarity index behind the
// semantic tool selector. Implementations must degrade gracefully:
// a broken or absent index returns an error that the selector converts
// into a keyword-strategy fallback, never a crash.
type VectorIndex interface {
	Upsert(ctx context.Context, id, document string, metadata map[string]string) error
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]Match, error)
}

// Match is one ranked result from a VectorIndex query. Lower distance
// means more similar.
type Match struct {
	ID       string
	Distance float32
	Metadata map[string]string
}
