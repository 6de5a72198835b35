// Package whisper_decoder runs each window through whisper.cpp and constrains
// the transcript to a grammar, so it can stand in for a grammar decoder.
package whisper_decoder

import (
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"streaming-speech-recognizer/sample_buffer"
	"streaming-speech-recognizer/speech_errors"
	"streaming-speech-recognizer/speech_to_text"
)

// segmentProcessor is the part of whisper.Context used per window.
type segmentProcessor interface {
	Process(data []float32, cb whisper.SegmentCallback) error
	NextSegment() (whisper.Segment, error)
}

func LoadModel(fileSys afero.Fs, path string) (whisper.Model, error) {
	if fileSys == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "fileSys is nil")
	}

	if _, err := fileSys.Stat(path); err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "whisper model %q: %v", path, err)
	}

	model, err := whisper.New(path)
	if err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "loading whisper model %s: %v", path, err)
	}

	return model, nil
}

type Config struct {
	Model    whisper.Model
	Grammar  speech_to_text.Grammar
	Language string
}

type sttImpl struct {
	newContext func() (segmentProcessor, error)
	grammar    speech_to_text.Grammar
	result     speech_to_text.Result
}

func New(cfg *Config) (speech_to_text.Interface, error) {
	if cfg == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "config is nil")
	}

	if cfg.Model == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "model is nil")
	}

	if len(cfg.Grammar) == 0 {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "grammar is empty")
	}

	model := cfg.Model
	language := cfg.Language

	return newDecoder(cfg.Grammar, func() (segmentProcessor, error) {
		context, err := model.NewContext()
		if err != nil {
			return nil, err
		}

		if language != "" {
			if err := context.SetLanguage(language); err != nil {
				return nil, err
			}
		}

		return context, nil
	}), nil
}

func newDecoder(grammar speech_to_text.Grammar, newContext func() (segmentProcessor, error)) *sttImpl {
	return &sttImpl{
		newContext: newContext,
		grammar:    grammar,
	}
}

// AcceptWindow transcribes the window in a fresh context. Whisper has no
// streaming state, so every window closes an utterance.
func (stt *sttImpl) AcceptWindow(pcm []byte) (bool, error) {
	context, err := stt.newContext()
	if err != nil {
		return false, errors.Wrapf(speech_errors.ErrDecode, "creating whisper context: %v", err)
	}

	if err := context.Process(normalize(sample_buffer.DecodePCM(pcm)), nil); err != nil {
		return false, errors.Wrapf(speech_errors.ErrDecode, "whisper process: %v", err)
	}

	segments, err := outputSegments(context)
	if err != nil {
		return false, errors.Wrapf(speech_errors.ErrDecode, "whisper segments: %v", err)
	}

	var words []string
	for _, segment := range segments {
		words = append(words, splitWords(segment.Text)...)
	}

	stt.result = speech_to_text.Result{Text: strings.Join(stt.grammar.Constrain(words), " ")}

	return true, nil
}

func (stt *sttImpl) Result() ([]byte, error) {
	return stt.result.Marshal(), nil
}

// Close is a no-op; the model is owned by the caller.
func (stt *sttImpl) Close() error {
	return nil
}

func normalize(samples []int16) []float32 {
	data := make([]float32, len(samples))
	for i, s := range samples {
		data[i] = float32(s) / 32768
	}

	return data
}

func outputSegments(context segmentProcessor) ([]whisper.Segment, error) {
	seenText := make(map[string]bool)

	segments := make([]whisper.Segment, 0)

	for {
		segment, err := context.NextSegment()
		if err == io.EOF {
			return segments, nil
		} else if err != nil {
			return nil, err
		}

		text := strings.TrimSpace(segment.Text)

		// non-speech annotations such as [BLANK_AUDIO] or (music)
		if len(text) > 0 && (text[0] == '(' || text[0] == '[' ||
			text[len(text)-1] == ')' || text[len(text)-1] == ']') {
			continue
		}

		if seenText[text] {
			continue
		}
		seenText[text] = true

		segments = append(segments, segment)
	}
}

func splitWords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ' ' || r == '\'' {
			return r
		}

		return ' '
	}, text)

	return strings.Fields(strings.ToLower(cleaned))
}
