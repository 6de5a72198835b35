// Package config loads the recognizer configuration from YAML, applies
// environment overrides and validates the result.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"streaming-speech-recognizer/speech_errors"
	"streaming-speech-recognizer/speech_to_text"
)

const (
	DecoderVosk    = "vosk"
	DecoderWhisper = "whisper"

	SourceMic  = "mic"
	SourceFile = "file"

	// DotEnvFile is read from the working directory, next to the process
	// environment.
	DotEnvFile = ".env"
)

// Config represents the complete service configuration
type Config struct {
	VoskModelPath      string  `yaml:"vosk_model_path"`
	Grammar            string  `yaml:"grammar"`
	ListenSeconds      float64 `yaml:"listen_seconds"`
	WaveOutputFilename string  `yaml:"wave_output_filename"`

	Decoder          string `yaml:"decoder"`
	WhisperModelPath string `yaml:"whisper_model_path"`
	WhisperLanguage  string `yaml:"whisper_language"`
	PublishEndpoint  string `yaml:"publish_endpoint"`

	Audio   AudioConfig   `yaml:"audio"`
	Source  SourceConfig  `yaml:"source"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig describes the capture format
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	ChunkSize  int `yaml:"chunk_size"` // samples per capture chunk
}

// SourceConfig selects where the capture loop reads chunks from
type SourceConfig struct {
	Type      string `yaml:"type"`
	InputFile string `yaml:"input_file"`
}

// ServerConfig enables the WebSocket ingest server when Address is set
type ServerConfig struct {
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Grammar:       `["[unk]"]`,
		ListenSeconds: 3,
		Decoder:       DecoderVosk,
		Audio: AudioConfig{
			SampleRate: 16000,
			ChunkSize:  512,
		},
		Source: SourceConfig{
			Type: SourceMic,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// Environment overrides are applied but the result is not validated.
func Load(fileSys afero.Fs, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := afero.ReadFile(fileSys, path)
		if err != nil {
			return nil, errors.Wrapf(speech_errors.ErrConfiguration, "reading config file %s: %v", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(speech_errors.ErrConfiguration, "parsing config file %s: %v", path, err)
		}
	}

	dotEnv, err := readDotEnv(fileSys, DotEnvFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(dotEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readDotEnv parses a .env file. A missing file yields no values; an
// unreadable or malformed one is a configuration error.
func readDotEnv(fileSys afero.Fs, path string) (map[string]string, error) {
	file, err := fileSys.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "opening %s: %v", path, err)
	}
	defer file.Close()

	values, err := godotenv.Parse(file)
	if err != nil {
		return nil, errors.Wrapf(speech_errors.ErrConfiguration, "parsing %s: %v", path, err)
	}

	return values, nil
}

// ApplyEnv overrides settings from the process environment, falling back to
// the values read from a .env file.
func (c *Config) ApplyEnv(dotEnv map[string]string) error {
	return c.applyEnv(func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return dotEnv[key]
	})
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("VOSK_MODEL_PATH"); v != "" {
		c.VoskModelPath = v
	}

	if v := getenv("SPEECH_GRAMMAR"); v != "" {
		c.Grammar = v
	}

	if v := getenv("LISTEN_SECONDS"); v != "" {
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(speech_errors.ErrConfiguration, "LISTEN_SECONDS %q: %v", v, err)
		}
		c.ListenSeconds = seconds
	}

	if v := getenv("WAVE_OUTPUT_FILENAME"); v != "" {
		c.WaveOutputFilename = v
	}

	if v := getenv("PUBLISH_ENDPOINT"); v != "" {
		c.PublishEndpoint = v
	}

	return nil
}

// Validate checks every section and parses the grammar.
func (c *Config) Validate() error {
	if c.ListenSeconds <= 0 {
		return errors.Wrapf(speech_errors.ErrConfiguration, "listen_seconds must be positive, got %v", c.ListenSeconds)
	}

	if _, err := c.ParsedGrammar(); err != nil {
		return err
	}

	switch c.Decoder {
	case DecoderVosk:
		if c.VoskModelPath == "" {
			return errors.Wrap(speech_errors.ErrConfiguration, "vosk_model_path cannot be empty")
		}
	case DecoderWhisper:
		if c.WhisperModelPath == "" {
			return errors.Wrap(speech_errors.ErrConfiguration, "whisper_model_path cannot be empty")
		}
	default:
		return errors.Wrapf(speech_errors.ErrConfiguration, "decoder must be 'vosk' or 'whisper', got '%s'", c.Decoder)
	}

	if err := c.Audio.Validate(); err != nil {
		return err
	}

	if err := c.Source.Validate(); err != nil {
		return err
	}

	return c.Logging.Validate()
}

func (c *Config) ParsedGrammar() (speech_to_text.Grammar, error) {
	return speech_to_text.ParseGrammar(c.Grammar)
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return errors.Wrapf(speech_errors.ErrConfiguration, "sample_rate must be positive, got %d", a.SampleRate)
	}

	if a.ChunkSize <= 0 {
		return errors.Wrapf(speech_errors.ErrConfiguration, "chunk_size must be positive, got %d", a.ChunkSize)
	}

	return nil
}

func (s *SourceConfig) Validate() error {
	switch s.Type {
	case SourceMic:
		return nil
	case SourceFile:
		if s.InputFile == "" {
			return errors.Wrap(speech_errors.ErrConfiguration, "input_file cannot be empty for a file source")
		}
		return nil
	default:
		return errors.Wrapf(speech_errors.ErrConfiguration, "source type must be 'mic' or 'file', got '%s'", s.Type)
	}
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return errors.Wrapf(speech_errors.ErrConfiguration, "level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return errors.Wrapf(speech_errors.ErrConfiguration, "format must be 'json' or 'console', got '%s'", l.Format)
	}

	return nil
}
