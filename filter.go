package luna

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FilteredPlaceholder replaces the whole generated reply when it trips
// the blacklist. A fixed neutral line, never the original text.
const FilteredPlaceholder = "Filtered."

// Blacklist is the banned-word list applied to completed generations.
// Matching is case-insensitive and whole-word over NFKC-normalized
// text, so fullwidth and ligature obfuscations of a banned word still
// match. The list is replaceable at runtime; a replacement changes
// future filtering decisions only.
type Blacklist struct {
	mu    sync.RWMutex
	words map[string]struct{}
	path  string

	// OnChange, when set, is called with the new word list after every
	// successful Replace. Wired to the outbound event stream.
	OnChange func(words []string)
}

// NewBlacklist creates a blacklist from an explicit word list.
func NewBlacklist(words []string) *Blacklist {
	b := &Blacklist{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = normalizeWord(w)
		if w != "" {
			b.words[w] = struct{}{}
		}
	}
	return b
}

// LoadBlacklist reads a blacklist file (one word per line, blank lines
// and lines starting with '#' ignored). A missing file yields an empty
// list, not an error: filtering is optional configuration.
func LoadBlacklist(path string) (*Blacklist, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			b := NewBlacklist(nil)
			b.path = path
			return b, nil
		}
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	b := NewBlacklist(words)
	b.path = path
	return b, nil
}

// Filtered reports whether text contains any banned word.
func (b *Blacklist) Filtered(text string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.words) == 0 {
		return false
	}
	for _, w := range tokenize(text) {
		if _, bad := b.words[w]; bad {
			return true
		}
	}
	return false
}

// Words returns the current banned words.
func (b *Blacklist) Words() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.words))
	for w := range b.words {
		out = append(out, w)
	}
	return out
}

// Replace swaps in a new word list, persists it to the backing file
// when one was configured, and notifies OnChange. Already delivered
// text is unaffected.
func (b *Blacklist) Replace(words []string) error {
	next := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = normalizeWord(w)
		if w != "" {
			next[w] = struct{}{}
		}
	}

	b.mu.Lock()
	b.words = next
	path := b.path
	b.mu.Unlock()

	if path != "" {
		if err := os.WriteFile(path, []byte(strings.Join(words, "\n")+"\n"), 0o644); err != nil {
			return err
		}
	}
	if b.OnChange != nil {
		b.OnChange(words)
	}
	return nil
}

func normalizeWord(w string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(w)))
}

// tokenize splits text into lowercase NFKC words, treating any
// non-letter non-digit rune as a separator.
func tokenize(text string) []string {
	cleaned := strings.ToLower(norm.NFKC.String(text))
	return strings.FieldsFunc(cleaned, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
