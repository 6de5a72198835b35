package speech_to_text

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"streaming-speech-recognizer/speech_errors"
)

// UnknownToken is the catch-all entry matching any out-of-grammar speech.
const UnknownToken = "[unk]"

// Grammar is the ordered list of tokens a decoder may emit.
type Grammar []string

// ParseGrammar reads a JSON array of tokens such as
// `["open", "bottle", "cup", "[unk]"]`.
func ParseGrammar(raw string) (Grammar, error) {
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "grammar %q is not a JSON array of strings: %v", raw, err)
	}

	if len(tokens) == 0 {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "grammar is empty")
	}

	for i, token := range tokens {
		if strings.TrimSpace(token) == "" {
			return nil, errors.Wrapf(speech_errors.ErrConfiguration, "grammar token %d is blank", i)
		}
	}

	return Grammar(tokens), nil
}

// String renders the grammar back to its JSON form.
func (g Grammar) String() string {
	out, _ := json.Marshal([]string(g))
	return string(out)
}

func (g Grammar) Contains(token string) bool {
	for _, t := range g {
		if strings.EqualFold(t, token) {
			return true
		}
	}

	return false
}

func (g Grammar) HasUnknown() bool {
	return g.Contains(UnknownToken)
}

// Constrain maps words onto the grammar: known words are kept, the rest
// become UnknownToken when the grammar allows it and are dropped otherwise.
func (g Grammar) Constrain(words []string) []string {
	out := make([]string, 0, len(words))

	for _, word := range words {
		switch {
		case g.Contains(word):
			out = append(out, strings.ToLower(word))
		case g.HasUnknown():
			out = append(out, UnknownToken)
		}
	}

	return out
}
