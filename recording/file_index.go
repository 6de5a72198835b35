package recording

// MaxFileIndex bounds the number of distinct recording files kept on disk.
const MaxFileIndex = 20

// FileIndex is the cyclic suffix of a recording file name. The zero value
// means no recording has been written yet.
type FileIndex int

// Next returns the index of the following recording, wrapping after
// MaxFileIndex back to 1.
func (i FileIndex) Next() FileIndex {
	if i < 1 || i >= MaxFileIndex {
		return 1
	}

	return i + 1
}
