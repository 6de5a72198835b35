package vosk_decoder

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"streaming-speech-recognizer/speech_errors"
)

type fakeRecognizer struct {
	statuses []int
	result   string
	accepted int
	freed    bool
}

func (f *fakeRecognizer) AcceptWaveform(buffer []byte) int {
	status := f.statuses[f.accepted]
	f.accepted++
	return status
}

func (f *fakeRecognizer) Result() string { return f.result }

func (f *fakeRecognizer) Free() { f.freed = true }

func TestDecoder_AcceptWindow(t *testing.T) {
	t.Run("map vosk statuses onto boundaries and errors", func(t *testing.T) {
		rec := &fakeRecognizer{statuses: []int{0, 1, -1}, result: `{"text" : "open"}`}
		decoder := newDecoder(rec)

		done, err := decoder.AcceptWindow(make([]byte, 4))
		if err != nil || done {
			t.Fatalf("expected no boundary, got %v %v", done, err)
		}

		done, err = decoder.AcceptWindow(make([]byte, 4))
		if err != nil || !done {
			t.Fatalf("expected boundary, got %v %v", done, err)
		}

		payload, _ := decoder.Result()
		if string(payload) != `{"text" : "open"}` {
			t.Errorf("unexpected payload %s", payload)
		}

		_, err = decoder.AcceptWindow(make([]byte, 4))
		if !errors.Is(err, speech_errors.ErrDecode) {
			t.Errorf("expected ErrDecode, got %v", err)
		}

		_ = decoder.Close()
		if !rec.freed {
			t.Errorf("expected recognizer to be freed")
		}
	})
}

func TestLoadModel(t *testing.T) {
	t.Run("missing model path is a configuration error", func(t *testing.T) {
		_, err := LoadModel(afero.NewMemMapFs(), "/models/missing")
		if !errors.Is(err, speech_errors.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("model path must be a directory", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()
		_ = afero.WriteFile(fileSys, "/models/model.bin", []byte("x"), 0o644)

		_, err := LoadModel(fileSys, "/models/model.bin")
		if !errors.Is(err, speech_errors.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("empty path is a configuration error", func(t *testing.T) {
		_, err := LoadModel(afero.NewMemMapFs(), "")
		if !errors.Is(err, speech_errors.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}
