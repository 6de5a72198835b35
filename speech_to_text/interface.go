package speech_to_text

//go:generate mockgen -destination=mock_speech_to_text/mock_interface.go -package=mock_speech_to_text . Interface

// Interface is a stateful decoder fed one window of PCM at a time.
type Interface interface {
	// AcceptWindow feeds little-endian 16-bit mono PCM and reports whether an
	// utterance boundary was reached.
	AcceptWindow(pcm []byte) (bool, error)

	// Result returns the JSON payload of the last finished utterance. It holds
	// at least a "text" field.
	Result() ([]byte, error)

	Close() error
}

// Factory builds a fresh decoder for one audio stream.
type Factory func() (Interface, error)
