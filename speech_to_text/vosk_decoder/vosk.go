// Package vosk_decoder adapts a grammar-constrained Vosk recognizer to
// speech_to_text.Interface.
package vosk_decoder

import (
	vosk "github.com/alphacep/vosk-api/go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"streaming-speech-recognizer/speech_errors"
	"streaming-speech-recognizer/speech_to_text"
)

// recognizer is the subset of *vosk.VoskRecognizer the decoder drives.
type recognizer interface {
	AcceptWaveform(buffer []byte) int
	Result() string
	Free()
}

// Model is a loaded Vosk acoustic model. One model is shared by every
// decoder built from it and must outlive them.
type Model struct {
	model *vosk.VoskModel
}

func LoadModel(fileSys afero.Fs, path string) (*Model, error) {
	if fileSys == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "fileSys is nil")
	}

	if path == "" {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "vosk model path is empty")
	}

	info, err := fileSys.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "vosk model %s: %v", path, err)
	}

	if !info.IsDir() {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "vosk model %s is not a directory", path)
	}

	model, err := vosk.NewModel(path)
	if err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "loading vosk model %s: %v", path, err)
	}

	return &Model{model: model}, nil
}

func (m *Model) Close() {
	m.model.Free()
}

type Config struct {
	Model      *Model
	SampleRate int
	Grammar    speech_to_text.Grammar
}

type decoderImpl struct {
	rec recognizer
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

	rec, err := vosk.NewRecognizerGrm(cfg.Model.model, float64(cfg.SampleRate), cfg.Grammar.String())
	if err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "creating vosk recognizer: %v", err)
	}

	return newDecoder(rec), nil
}

func newDecoder(rec recognizer) *decoderImpl {
	return &decoderImpl{rec: rec}
}

func (d *decoderImpl) AcceptWindow(pcm []byte) (bool, error) {
	status := d.rec.AcceptWaveform(pcm)
	if status < 0 {
		return false, errors.Wrapf(speech_errors.ErrDecode, "vosk rejected window of %d bytes", len(pcm))
	}

	return status > 0, nil
}

func (d *decoderImpl) Result() ([]byte, error) {
	return []byte(d.rec.Result()), nil
}

func (d *decoderImpl) Close() error {
	d.rec.Free()

	return nil
}
