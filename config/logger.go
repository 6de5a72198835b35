package config

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"streaming-speech-recognizer/speech_errors"
)

// NewLogger builds a zap logger: production JSON output for "json", the
// development console encoder for "console".
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "log level %q: %v", cfg.Level, err)
	}

	var zcfg zap.Config
	switch cfg.Format {
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = level

	return zcfg.Build()
}
