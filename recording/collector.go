// Package recording keeps the last listen window of raw capture chunks and
// writes it out as a cyclic set of WAV files for debugging.
package recording

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/zenwerk/go-wave"
	"go.uber.org/zap"

	"streaming-speech-recognizer/sample_buffer"
	"streaming-speech-recognizer/speech_errors"
)

const (
	channels      = 1
	bitsPerSample = 16
)

type Config struct {
	FileSys       afero.Fs
	Prefix        string
	SampleRate    int
	ChunkSize     int
	ListenSeconds float64
	Logger        *zap.Logger
}

type Collector struct {
	fileSys    afero.Fs
	prefix     string
	sampleRate int
	threshold  int
	logger     *zap.Logger

	pending [][]byte
	index   FileIndex
}

func New(cfg *Config) (*Collector, error) {
	if cfg == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "recording config is nil")
	}

	if cfg.FileSys == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "fileSys is nil")
	}

	if cfg.Prefix == "" {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "recording prefix is empty")
	}

	if cfg.SampleRate <= 0 || cfg.ChunkSize <= 0 || cfg.ListenSeconds <= 0 {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration,
			"invalid recording geometry: rate=%d chunk=%d listen=%v", cfg.SampleRate, cfg.ChunkSize, cfg.ListenSeconds)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		fileSys:    cfg.FileSys,
		prefix:     cfg.Prefix,
		sampleRate: cfg.SampleRate,
		threshold:  FlushThreshold(cfg.SampleRate, cfg.ChunkSize, cfg.ListenSeconds),
		logger:     logger,
	}, nil
}

// FlushThreshold is the number of chunks of chunkSize samples needed to span
// listenSeconds of audio, rounded up.
func FlushThreshold(sampleRate, chunkSize int, listenSeconds float64) int {
	chunks := float64(sampleRate) * listenSeconds / float64(chunkSize)

	// absorb float noise so that exact multiples do not round up
	return int(math.Ceil(chunks - 1e-9))
}

// AddChunk stores a copy of raw; the caller keeps ownership of its buffer.
// Only the last Threshold chunks are kept, so pending audio stays bounded
// while flushes keep failing.
func (c *Collector) AddChunk(raw []byte) {
	chunk := make([]byte, len(raw))
	copy(chunk, raw)

	c.pending = append(c.pending, chunk)

	if over := len(c.pending) - c.threshold; over > 0 {
		c.pending = append(c.pending[:0], c.pending[over:]...)
	}
}

func (c *Collector) ShouldFlush() bool {
	return len(c.pending) >= c.threshold
}

func (c *Collector) Pending() int {
	return len(c.pending)
}

func (c *Collector) Threshold() int {
	return c.threshold
}

// Index is the suffix of the last recording written, 0 before the first.
func (c *Collector) Index() FileIndex {
	return c.index
}

// Flush writes the pending chunks to the next recording file and resets the
// pending list. On failure nothing is cleared and the index is not advanced.
func (c *Collector) Flush() (string, error) {
	next := c.index.Next()
	filename := c.prefix + fmt.Sprint(int(next)) + ".wav"

	if err := c.write(filename); err != nil {
		return "", errors.Wrapf(speech_errors.ErrStorage, "writing %s: %v", filename, err)
	}

	c.index = next
	c.pending = nil

	c.logger.Info("saved recording", zap.String("file", filename))

	return filename, nil
}

func (c *Collector) write(filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := c.fileSys.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	waveFile, err := c.fileSys.Create(filename)
	if err != nil {
		return err
	}

	param := wave.WriterParam{
		Out:           waveFile,
		Channel:       channels,
		SampleRate:    c.sampleRate,
		BitsPerSample: bitsPerSample,
	}

	waveWriter, err := wave.NewWriter(param)
	if err != nil {
		_ = waveFile.Close()
		return err
	}

	blob := bytes.Join(c.pending, nil)

	if _, err := waveWriter.WriteSample16(sample_buffer.DecodePCM(blob)); err != nil {
		_ = waveFile.Close()
		return err
	}

	// the writer emits the RIFF header and data here and closes the file
	if err := waveWriter.Close(); err != nil {
		_ = waveFile.Close()
		return err
	}

	return nil
}
