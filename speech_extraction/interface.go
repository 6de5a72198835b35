package speech_extraction

import "context"

type Interface interface {
	Listen(ctx context.Context) error
}

// Source delivers raw capture chunks of little-endian 16-bit mono PCM.
// ReadChunk returns io.EOF once the source is exhausted.
type Source interface {
	Start() error
	ReadChunk() ([]byte, error)
	Close() error
}

// Recognizer is the part of a recognition session the listen loop drives.
type Recognizer interface {
	ID() string
	ProcessAudio(chunk []byte) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, sessionID, text string) error
}
