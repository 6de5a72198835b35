package speech_to_text

import (
	"encoding/json"

	"github.com/pkg/errors"

	"streaming-speech-recognizer/speech_errors"
)

// Result is the decoder payload for a finished utterance.
type Result struct {
	Text string `json:"text"`
}

func ParseResult(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, errors.Wrapf(speech_errors.ErrDecode, "unparseable result %q: %v", payload, err)
	}

	return result, nil
}

func (r Result) Marshal() []byte {
	out, _ := json.Marshal(r)
	return out
}
