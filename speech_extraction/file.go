package speech_extraction

import (
	"io"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"streaming-speech-recognizer/sample_buffer"
	"streaming-speech-recognizer/speech_errors"
)

type fileImpl struct {
	fileSys    afero.Fs
	path       string
	sampleRate int
	chunkSize  int

	data []int
	pos  int
}

type FileConfig struct {
	FileSys    afero.Fs
	Path       string
	SampleRate int
	ChunkSize  int
}

// NewFile replays a mono 16-bit WAV file as capture chunks. The final chunk
// may be shorter than ChunkSize.
func NewFile(cfg *FileConfig) (Source, error) {
	if cfg == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "config is nil")
	}

	if cfg.FileSys == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "fileSys is nil")
	}

	if cfg.ChunkSize <= 0 {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "invalid chunk size %d", cfg.ChunkSize)
	}

	return &fileImpl{
		fileSys:    cfg.FileSys,
		path:       cfg.Path,
		sampleRate: cfg.SampleRate,
		chunkSize:  cfg.ChunkSize,
	}, nil
}

func (f *fileImpl) Start() error {
	file, err := f.fileSys.Open(f.path)
	if err != nil {
		return errors.Wrapf(speech_errors.ErrConfiguration, "opening %s: %v", f.path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return errors.Wrapf(speech_errors.ErrConfiguration, "decoding %s: %v", f.path, err)
	}

	if decoder.NumChans != 1 || decoder.BitDepth != 16 || int(decoder.SampleRate) != f.sampleRate {
		return errors.Wrapf(speech_errors.ErrConfiguration,
			"%s must be mono 16-bit at %d Hz, got %d channels %d-bit at %d Hz",
			f.path, f.sampleRate, decoder.NumChans, decoder.BitDepth, decoder.SampleRate)
	}

	f.data = buf.Data
	f.pos = 0

	return nil
}

func (f *fileImpl) ReadChunk() ([]byte, error) {
	if f.pos >= len(f.data) {
		return nil, io.EOF
	}

	end := f.pos + f.chunkSize
	if end > len(f.data) {
		end = len(f.data)
	}

	samples := make([]int16, end-f.pos)
	for i := range samples {
		samples[i] = int16(f.data[f.pos+i])
	}

	f.pos = end

	return sample_buffer.EncodePCM(samples), nil
}

func (f *fileImpl) Close() error {
	f.data = nil

	return nil
}
