// Package server accepts audio streams over WebSocket. Every connection gets
// its own decoder and recognition session.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"streaming-speech-recognizer/metrics"
	"streaming-speech-recognizer/recognizer"
	"streaming-speech-recognizer/speech_errors"
	"streaming-speech-recognizer/speech_to_text"
)

const (
	shutdownTimeout = 10 * time.Second

	// maxFrameChunks bounds a single binary frame, in capture chunks.
	maxFrameChunks = 16
)

type Config struct {
	NewDecoder speech_to_text.Factory

	SampleRate    int
	ChunkSize     int
	ListenSeconds float64

	// WaveOutputFilename is extended with a per-connection suffix so streams
	// never share recording files.
	WaveOutputFilename string
	FileSys            afero.Fs

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type reply struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "config is nil")
	}

	if cfg.NewDecoder == nil {
		return nil, errors.Wrap(speech_errors.ErrConfiguration, "decoder factory is nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}

	return &Server{
		cfg: *cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: m,
	}, nil
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/ws/recognize", s.handleRecognize)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:    address,
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("address", address))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.readLimit())

	id := uuid.NewString()
	logger := s.logger.With(zap.String("session_id", id), zap.String("remote", r.RemoteAddr))

	session, err := s.newSession(id, logger)
	if err != nil {
		logger.Error("error creating session", zap.Error(err))
		_ = conn.WriteJSON(reply{SessionID: id, Error: err.Error()})
		return
	}

	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("error closing session", zap.Error(err))
		}
	}()

	logger.Info("stream started")

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("stream read failed", zap.Error(err))
			}
			logger.Info("stream ended")
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		texts, procErr := session.Process(data)

		for _, text := range texts {
			if err := conn.WriteJSON(reply{SessionID: id, Text: text}); err != nil {
				logger.Warn("error writing reply", zap.Error(err))
				return
			}
		}

		if speech_errors.OnlyStorage(procErr) {
			logger.Warn("recording failed", zap.Error(procErr))
			_ = conn.WriteJSON(reply{SessionID: id, Error: procErr.Error()})
			continue
		}

		if procErr != nil {
			logger.Error("stream failed", zap.Error(procErr))
			_ = conn.WriteJSON(reply{SessionID: id, Error: procErr.Error()})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "processing failed"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// readLimit is the largest binary frame accepted, in bytes of 16-bit PCM.
func (s *Server) readLimit() int64 {
	chunkSize := s.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = recognizer.DefaultChunkSize
	}

	return int64(maxFrameChunks * chunkSize * 2)
}

func (s *Server) newSession(id string, logger *zap.Logger) (*recognizer.Session, error) {
	decoder, err := s.cfg.NewDecoder()
	if err != nil {
		return nil, err
	}

	prefix := ""
	if s.cfg.WaveOutputFilename != "" {
		prefix = s.cfg.WaveOutputFilename + id[:8] + "_"
	}

	session, err := recognizer.New(&recognizer.Config{
		ID:                 id,
		Decoder:            decoder,
		SampleRate:         s.cfg.SampleRate,
		ChunkSize:          s.cfg.ChunkSize,
		ListenSeconds:      s.cfg.ListenSeconds,
		WaveOutputFilename: prefix,
		FileSys:            s.cfg.FileSys,
		Logger:             logger,
		Metrics:            s.metrics,
	})
	if err != nil {
		_ = decoder.Close()
		return nil, err
	}

	return session, nil
}
