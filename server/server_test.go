package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"

	"streaming-speech-recognizer/sample_buffer"
	"streaming-speech-recognizer/speech_to_text"
)

// everyWindowDecoder recognizes the same text for every window.
type everyWindowDecoder struct {
	text   string
	closed *int
}

func (d *everyWindowDecoder) AcceptWindow(pcm []byte) (bool, error) { return true, nil }

func (d *everyWindowDecoder) Result() ([]byte, error) {
	return speech_to_text.Result{Text: d.text}.Marshal(), nil
}

func (d *everyWindowDecoder) Close() error {
	*d.closed++
	return nil
}

// failingFs refuses to create files.
type failingFs struct {
	afero.Fs
}

func (f failingFs) Create(name string) (afero.File, error) {
	return nil, errors.New("disk full")
}

func newTestServer(t *testing.T, factory speech_to_text.Factory) *httptest.Server {
	t.Helper()

	return serve(t, &Config{
		NewDecoder:    factory,
		SampleRate:    1000,
		ChunkSize:     100,
		ListenSeconds: 1,
	})
}

func serve(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("error with New: %v", err)
	}

	httpServer := httptest.NewServer(srv.Routes())
	t.Cleanup(httpServer.Close)

	return httpServer
}

func dial(t *testing.T, httpServer *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws/recognize"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("error dialing: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestServer_Recognize(t *testing.T) {
	t.Run("reply with the text of each finished window", func(t *testing.T) {
		closed := 0
		httpServer := newTestServer(t, func() (speech_to_text.Interface, error) {
			return &everyWindowDecoder{text: "open", closed: &closed}, nil
		})
		conn := dial(t, httpServer)

		for i := 0; i < 10; i++ {
			chunk := sample_buffer.EncodePCM(make([]int16, 100))
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				t.Fatalf("error writing: %v", err)
			}
		}

		var got reply
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("error reading: %v", err)
		}

		if got.Text != "open" || got.SessionID == "" || got.Error != "" {
			t.Errorf("unexpected reply %+v", got)
		}
	})

	t.Run("a malformed chunk is reported and closes the stream", func(t *testing.T) {
		closed := 0
		httpServer := newTestServer(t, func() (speech_to_text.Interface, error) {
			return &everyWindowDecoder{text: "open", closed: &closed}, nil
		})
		conn := dial(t, httpServer)

		if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
			t.Fatalf("error writing: %v", err)
		}

		var got reply
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("error reading: %v", err)
		}

		if !strings.Contains(got.Error, "malformed chunk") {
			t.Errorf("expected a malformed chunk error, got %+v", got)
		}

		if _, _, err := conn.ReadMessage(); err == nil {
			t.Errorf("expected the stream to be closed")
		}
	})

	t.Run("a frame over the read limit closes the stream", func(t *testing.T) {
		closed := 0
		httpServer := newTestServer(t, func() (speech_to_text.Interface, error) {
			return &everyWindowDecoder{text: "open", closed: &closed}, nil
		})
		conn := dial(t, httpServer)

		huge := sample_buffer.EncodePCM(make([]int16, maxFrameChunks*100+1))
		if err := conn.WriteMessage(websocket.BinaryMessage, huge); err != nil {
			t.Fatalf("error writing: %v", err)
		}

		if _, _, err := conn.ReadMessage(); err == nil {
			t.Errorf("expected the stream to be closed")
		}
	})

	t.Run("failed recordings are reported and the stream goes on", func(t *testing.T) {
		closed := 0
		httpServer := serve(t, &Config{
			NewDecoder: func() (speech_to_text.Interface, error) {
				return &everyWindowDecoder{text: "open", closed: &closed}, nil
			},
			SampleRate:         1000,
			ChunkSize:          100,
			ListenSeconds:      1,
			WaveOutputFilename: "rec_",
			FileSys:            failingFs{Fs: afero.NewMemMapFs()},
		})
		conn := dial(t, httpServer)

		for i := 0; i < 20; i++ {
			chunk := sample_buffer.EncodePCM(make([]int16, 100))
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				t.Fatalf("error writing: %v", err)
			}
		}

		// every call from the 10th on fails to record; calls 10 and 20 finish a window
		texts, failures := 0, 0
		for texts+failures < 13 {
			var got reply
			if err := conn.ReadJSON(&got); err != nil {
				t.Fatalf("error reading after %d texts and %d failures: %v", texts, failures, err)
			}

			switch {
			case got.Text == "open":
				texts++
			case strings.Contains(got.Error, "storage error"):
				failures++
			default:
				t.Fatalf("unexpected reply %+v", got)
			}
		}

		if texts != 2 || failures != 11 {
			t.Errorf("expected 2 texts and 11 failures, got %d and %d", texts, failures)
		}
	})

	t.Run("a failing decoder factory is reported", func(t *testing.T) {
		httpServer := newTestServer(t, func() (speech_to_text.Interface, error) {
			return nil, errors.New("model unavailable")
		})
		conn := dial(t, httpServer)

		var got reply
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("error reading: %v", err)
		}

		if got.Error != "model unavailable" {
			t.Errorf("unexpected reply %+v", got)
		}
	})
}

func TestServer_Routes(t *testing.T) {
	closed := 0
	httpServer := newTestServer(t, func() (speech_to_text.Interface, error) {
		return &everyWindowDecoder{closed: &closed}, nil
	})

	for _, path := range []string{"/healthz", "/metrics"} {
		path := path
		t.Run("serve "+path, func(t *testing.T) {
			resp, err := http.Get(httpServer.URL + path)
			if err != nil {
				t.Fatalf("error requesting %s: %v", path, err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}
