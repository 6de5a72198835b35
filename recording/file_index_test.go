package recording

import "testing"

func TestFileIndex_Next(t *testing.T) {
	t.Run("first index is 1", func(t *testing.T) {
		var index FileIndex
		if index.Next() != 1 {
			t.Errorf("expected 1, got %d", index.Next())
		}
	})

	t.Run("index stays within 1 and 20 and wraps on the 21st step", func(t *testing.T) {
		var index FileIndex

		for i := 1; i <= 100; i++ {
			index = index.Next()

			if index < 1 || index > MaxFileIndex {
				t.Fatalf("step %d: index %d out of range", i, index)
			}

			expected := FileIndex((i-1)%MaxFileIndex + 1)
			if index != expected {
				t.Fatalf("step %d: expected %d, got %d", i, expected, index)
			}
		}
	})

	t.Run("20 wraps to 1", func(t *testing.T) {
		if FileIndex(20).Next() != 1 {
			t.Errorf("expected 1, got %d", FileIndex(20).Next())
		}
	})
}
