// Package speech_errors holds the failure kinds shared by the recognizer
// packages. Call sites wrap them with github.com/pkg/errors; callers classify
// with errors.Is.
package speech_errors

import "github.com/pkg/errors"

var (
	// ErrConfiguration is returned at construction time for a malformed
	// grammar, an unreadable model path or an invalid setting.
	ErrConfiguration = errors.New("configuration error")

	// ErrMalformedChunk is returned for a chunk that does not hold a whole
	// number of 16-bit samples.
	ErrMalformedChunk = errors.New("malformed chunk")

	// ErrDecode is returned when the decoder rejects a window or produces a
	// result that cannot be parsed.
	ErrDecode = errors.New("decode error")

	// ErrStorage is returned when a recording cannot be written.
	ErrStorage = errors.New("storage error")
)

// OnlyStorage reports whether err carries a storage failure and nothing
// else. Recognition can go on after such an error.
func OnlyStorage(err error) bool {
	return errors.Is(err, ErrStorage) &&
		!errors.Is(err, ErrDecode) &&
		!errors.Is(err, ErrMalformedChunk) &&
		!errors.Is(err, ErrConfiguration)
}
