package sample_buffer

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"streaming-speech-recognizer/speech_errors"
)

var ErrShortBuffer = errors.New("not enough samples buffered")

// Buffer is a FIFO of 16-bit PCM samples. Samples are appended at the tail
// and drained from the head; it is not safe for concurrent use.
type Buffer struct {
	samples []int16
	head    int
}

func New() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.compact()

	b.samples = append(b.samples, samples...)
}

// AppendPCM decodes little-endian 16-bit samples from chunk and appends them.
// An odd-length chunk is rejected and leaves the buffer unchanged.
func (b *Buffer) AppendPCM(chunk []byte) error {
	if len(chunk)%2 != 0 {
		return errors.Wrapf(speech_errors.ErrMalformedChunk, "chunk length %d is not a multiple of 2", len(chunk))
	}

	b.Append(DecodePCM(chunk))

	return nil
}

func (b *Buffer) Len() int {
	return len(b.samples) - b.head
}

// TakeFront removes the first n samples and returns them as a new slice.
func (b *Buffer) TakeFront(n int) ([]int16, error) {
	if n < 0 || n > b.Len() {
		return nil, errors.Wrapf(ErrShortBuffer, "requested %d, have %d", n, b.Len())
	}

	out := make([]int16, n)
	copy(out, b.samples[b.head:b.head+n])

	b.head += n
	if b.head == len(b.samples) {
		b.samples = b.samples[:0]
		b.head = 0
	}

	return out, nil
}

// compact moves the live tail to the start of the backing array once the
// drained prefix is at least as large as the tail.
func (b *Buffer) compact() {
	if b.head == 0 || b.head < b.Len() {
		return
	}

	n := copy(b.samples, b.samples[b.head:])
	b.samples = b.samples[:n]
	b.head = 0
}

func DecodePCM(chunk []byte) []int16 {
	samples := make([]int16, len(chunk)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(chunk[2*i:]))
	}

	return samples
}

func EncodePCM(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}

	return out
}
