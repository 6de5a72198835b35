// Package recognizer turns a stream of raw PCM chunks into recognized text.
//
// A Session buffers samples, cuts them into fixed windows for a stateful
// decoder and, when a recording prefix is configured, keeps the raw chunks
// of the last listen window as cyclic debug WAV files. A Session serves one
// audio stream and is not safe for concurrent use; run one per stream.
package recognizer

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"streaming-speech-recognizer/metrics"
	"streaming-speech-recognizer/recording"
	"streaming-speech-recognizer/sample_buffer"
	"streaming-speech-recognizer/speech_errors"
	"streaming-speech-recognizer/speech_extraction/vad"
	"streaming-speech-recognizer/speech_to_text"
)

const (
	DefaultSampleRate    = 16000
	DefaultChunkSize     = 512
	DefaultListenSeconds = 3
)

type Config struct {
	// ID names the session in logs; a random UUID is used when empty.
	ID      string
	Decoder speech_to_text.Interface

	SampleRate    int
	ChunkSize     int
	ListenSeconds float64

	// WaveOutputFilename is the recording prefix; empty disables recording.
	WaveOutputFilename string
	FileSys            afero.Fs

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Session struct {
	id       string
	buffer   *sample_buffer.Buffer
	recorder *recording.Collector
	decoder  speech_to_text.Interface
	window   int
	vad      vad.Interface
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "config is nil")
	}

	if cfg.Decoder == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "decoder is nil")
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}

	chunkSize := cfg.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	listenSeconds := cfg.ListenSeconds
	if listenSeconds == 0 {
		listenSeconds = DefaultListenSeconds
	}

	window := int(math.Round(float64(sampleRate) * listenSeconds))
	if sampleRate < 0 || chunkSize < 0 || window <= 0 {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration,
			"invalid window: rate=%d chunk=%d listen=%v", sampleRate, chunkSize, listenSeconds)
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", id))

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}

	s := &Session{
		id:      id,
		buffer:  sample_buffer.New(),
		decoder: cfg.Decoder,
		window:  window,
		vad:     vad.New(window),
		logger:  logger,
		metrics: m,
	}

	if cfg.WaveOutputFilename != "" {
		fileSys := cfg.FileSys
		if fileSys == nil {
			fileSys = afero.NewOsFs()
		}

		recorder, err := recording.New(&recording.Config{
			FileSys:       fileSys,
			Prefix:        cfg.WaveOutputFilename,
			SampleRate:    sampleRate,
			ChunkSize:     chunkSize,
			ListenSeconds: listenSeconds,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}

		s.recorder = recorder
	}

	m.ActiveSessions.Inc()

	logger.Debug("session created",
		zap.Int("window_samples", window),
		zap.Bool("recording", s.recorder != nil),
	)

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Buffered is the number of samples waiting for the next window.
func (s *Session) Buffered() int {
	return s.buffer.Len()
}

// WindowSize is the number of samples handed to the decoder per window.
func (s *Session) WindowSize() int {
	return s.window
}

// ProcessAudio feeds one chunk and returns the recognized text, or "" when
// no utterance with text finished during the call. Several recognitions in
// one call are joined by a space.
func (s *Session) ProcessAudio(chunk []byte) (string, error) {
	texts, err := s.Process(chunk)

	return strings.Join(texts, " "), err
}

// Process feeds one chunk of little-endian 16-bit mono PCM. Every complete
// window buffered after the chunk is decoded before returning; the
// recognized texts come back in order. On a decode error the texts found
// before it are returned along with the error. A failed recording flush
// does not stop decoding; its storage error is returned with the texts.
func (s *Session) Process(chunk []byte) ([]string, error) {
	if len(chunk)%2 != 0 {
		s.metrics.Errors.WithLabelValues("malformed_chunk").Inc()

		return nil, errors.Wrapf(speech_errors.ErrMalformedChunk, "chunk length %d is odd", len(chunk))
	}

	if len(chunk) == 0 {
		return nil, nil
	}

	if err := s.buffer.AppendPCM(chunk); err != nil {
		return nil, err
	}

	s.metrics.ChunksReceived.Inc()
	s.metrics.SamplesBuffered.Add(float64(len(chunk) / 2))

	if s.recorder != nil {
		s.recorder.AddChunk(chunk)
	}

	texts, decodeErr := s.drain()

	return texts, multierr.Append(decodeErr, s.flushRecording())
}

func (s *Session) drain() ([]string, error) {
	var texts []string

	for s.buffer.Len() >= s.window {
		window, err := s.buffer.TakeFront(s.window)
		if err != nil {
			return texts, err
		}

		text, err := s.decode(window)
		if err != nil {
			s.metrics.Errors.WithLabelValues("decode").Inc()

			return texts, err
		}

		if text != "" {
			texts = append(texts, text)
		}
	}

	return texts, nil
}

func (s *Session) flushRecording() error {
	if s.recorder == nil || !s.recorder.ShouldFlush() {
		return nil
	}

	if _, err := s.recorder.Flush(); err != nil {
		s.metrics.Errors.WithLabelValues("storage").Inc()
		s.logger.Warn("error saving recording", zap.Error(err))

		return err
	}

	s.metrics.RecordingsSaved.Inc()

	return nil
}

func (s *Session) decode(window []int16) (string, error) {
	if ce := s.logger.Check(zap.DebugLevel, "decoding window"); ce != nil {
		ce.Write(zap.Int("samples", len(window)), zap.Float64("flux", s.vad.Flux(window)))
	}

	start := time.Now()

	done, err := s.decoder.AcceptWindow(sample_buffer.EncodePCM(window))

	s.metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	s.metrics.WindowsDecoded.Inc()

	if err != nil {
		return "", asDecodeError(err)
	}

	if !done {
		return "", nil
	}

	s.metrics.Utterances.Inc()
	s.vad.Reset()

	payload, err := s.decoder.Result()
	if err != nil {
		return "", asDecodeError(err)
	}

	result, err := speech_to_text.ParseResult(payload)
	if err != nil {
		return "", err
	}

	if result.Text == "" {
		return "", nil
	}

	s.metrics.TextsRecognized.Inc()
	s.logger.Info("recognized", zap.String("text", result.Text))

	return result.Text, nil
}

// Close releases the decoder.
func (s *Session) Close() error {
	s.metrics.ActiveSessions.Dec()

	return s.decoder.Close()
}

func asDecodeError(err error) error {
	if errors.Is(err, speech_errors.ErrDecode) {
		return err
	}

	return errors.Wrap(speech_errors.ErrDecode, err.Error())
}
