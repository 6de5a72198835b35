// Package mic captures chunks from the default input device through
// portaudio. It links against the native portaudio library.
package mic

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"streaming-speech-recognizer/sample_buffer"
	"streaming-speech-recognizer/speech_extraction"
)

type micImpl struct {
	sampleRate   int
	in           []int16
	stream       *portaudio.Stream
	audioRunning bool
}

type Config struct {
	SampleRate int
	ChunkSize  int
}

// New reads ChunkSize-sample chunks from the default input device.
func New(cfg *Config) (speech_extraction.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.SampleRate <= 0 || cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("invalid mic format: rate=%d chunk=%d", cfg.SampleRate, cfg.ChunkSize)
	}

	return &micImpl{
		sampleRate: cfg.SampleRate,
		in:         make([]int16, cfg.ChunkSize),
	}, nil
}

func (m *micImpl) Start() error {
	if !m.audioRunning {
		err := portaudio.Initialize()
		if err != nil {
			return err
		}

		m.audioRunning = true
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(m.in), m.in)
	if err != nil {
		return err
	}

	err = stream.Start()
	if err != nil {
		stream.Close()
		return err
	}

	m.stream = stream

	return nil
}

func (m *micImpl) ReadChunk() ([]byte, error) {
	err := m.stream.Read()
	if err != nil {
		return nil, err
	}

	return sample_buffer.EncodePCM(m.in), nil
}

func (m *micImpl) Close() error {
	var firstErr error

	if m.stream != nil {
		if err := m.stream.Stop(); err != nil {
			firstErr = err
		}

		if err := m.stream.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		m.stream = nil
	}

	if m.audioRunning {
		if err := portaudio.Terminate(); err != nil && firstErr == nil {
			firstErr = err
		}

		m.audioRunning = false
	}

	return firstErr
}
