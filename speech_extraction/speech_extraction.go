// Package speech_extraction drives a recognition session from a capture
// source and publishes what it recognizes.
package speech_extraction

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"streaming-speech-recognizer/speech_errors"
)

type listenerImpl struct {
	source    Source
	session   Recognizer
	publisher Publisher
	logger    *zap.Logger
}

type Config struct {
	Source  Source
	Session Recognizer

	// Publisher is optional; recognized text is always logged.
	Publisher Publisher
	Logger    *zap.Logger
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Source == nil {
		return nil, fmt.Errorf("source is nil")
	}

	if cfg.Session == nil {
		return nil, fmt.Errorf("session is nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &listenerImpl{
		source:    cfg.Source,
		session:   cfg.Session,
		publisher: cfg.Publisher,
		logger:    logger.With(zap.String("session_id", cfg.Session.ID())),
	}, nil
}

// Listen feeds every chunk of the source to the session until the source is
// exhausted or ctx is cancelled. Session errors stop the loop, except for
// failed recordings, which are logged.
func (l *listenerImpl) Listen(ctx context.Context) error {
	err := l.source.Start()
	if err != nil {
		return err
	}

	defer func() {
		if err := l.source.Close(); err != nil {
			l.logger.Warn("error while closing source", zap.Error(err))
		}
	}()

	l.logger.Info("starting to listen")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("exiting gracefully")
			return nil
		default:
		}

		chunk, err := l.source.ReadChunk()
		if err == io.EOF {
			l.logger.Info("source exhausted")
			return nil
		} else if err != nil {
			return err
		}

		text, procErr := l.session.ProcessAudio(chunk)

		if text != "" {
			l.handleText(ctx, text)
		}

		if procErr != nil {
			if !speech_errors.OnlyStorage(procErr) {
				return procErr
			}

			l.logger.Warn("recording failed, still listening", zap.Error(procErr))
		}
	}
}

func (l *listenerImpl) handleText(ctx context.Context, text string) {
	l.logger.Info("heard", zap.String("text", text))

	if l.publisher == nil {
		return
	}

	if err := l.publisher.Publish(ctx, l.session.ID(), text); err != nil {
		l.logger.Warn("error publishing text", zap.String("text", text), zap.Error(err))
	}
}
