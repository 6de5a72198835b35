package config

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"streaming-speech-recognizer/speech_errors"
)

const sampleConfig = `
vosk_model_path: /models/vosk-small-en
grammar: '["open", "bottle", "cup", "[unk]"]'
listen_seconds: 2
wave_output_filename: /tmp/rec_
audio:
  sample_rate: 16000
  chunk_size: 512
logging:
  level: debug
  format: console
`

func TestLoad(t *testing.T) {
	t.Run("read a config file over the defaults", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()
		_ = afero.WriteFile(fileSys, "/etc/speech.yaml", []byte(sampleConfig), 0o644)

		cfg, err := Load(fileSys, "/etc/speech.yaml")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}

		if cfg.VoskModelPath != "/models/vosk-small-en" {
			t.Errorf("unexpected model path %s", cfg.VoskModelPath)
		}

		if cfg.ListenSeconds != 2 {
			t.Errorf("expected 2, got %v", cfg.ListenSeconds)
		}

		if cfg.Decoder != DecoderVosk || cfg.Source.Type != SourceMic {
			t.Errorf("expected defaults to survive, got %s %s", cfg.Decoder, cfg.Source.Type)
		}

		grammar, _ := cfg.ParsedGrammar()
		if len(grammar) != 4 {
			t.Errorf("expected 4 grammar tokens, got %d", len(grammar))
		}
	})

	t.Run("missing file is a configuration error", func(t *testing.T) {
		_, err := Load(afero.NewMemMapFs(), "/etc/missing.yaml")
		if !errors.Is(err, speech_errors.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("invalid yaml is a configuration error", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()
		_ = afero.WriteFile(fileSys, "/etc/speech.yaml", []byte("listen_seconds: [oops"), 0o644)

		_, err := Load(fileSys, "/etc/speech.yaml")
		if !errors.Is(err, speech_errors.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("values from the .env file are applied", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()
		_ = afero.WriteFile(fileSys, DotEnvFile, []byte("WAVE_OUTPUT_FILENAME=debug/rec_\n"), 0o644)

		cfg, err := Load(fileSys, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.WaveOutputFilename != "debug/rec_" {
			t.Errorf("expected debug/rec_, got %q", cfg.WaveOutputFilename)
		}
	})

	t.Run("a malformed .env file is a configuration error", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()
		_ = afero.WriteFile(fileSys, DotEnvFile, []byte("VOSK_MODEL_PATH=\"/models/vosk\n"), 0o644)

		_, err := Load(fileSys, "")
		if !errors.Is(err, speech_errors.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Run("process environment wins over the .env file", func(t *testing.T) {
		t.Setenv("VOSK_MODEL_PATH", "/env/model")

		cfg := Default()
		err := cfg.ApplyEnv(map[string]string{
			"VOSK_MODEL_PATH":      "/dotenv/model",
			"LISTEN_SECONDS":       "1.5",
			"WAVE_OUTPUT_FILENAME": "rec_",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.VoskModelPath != "/env/model" {
			t.Errorf("expected /env/model, got %s", cfg.VoskModelPath)
		}

		if cfg.ListenSeconds != 1.5 {
			t.Errorf("expected 1.5, got %v", cfg.ListenSeconds)
		}

		if cfg.WaveOutputFilename != "rec_" {
			t.Errorf("expected rec_, got %s", cfg.WaveOutputFilename)
		}
	})

	t.Run("bad listen seconds is a configuration error", func(t *testing.T) {
		cfg := Default()

		err := cfg.ApplyEnv(map[string]string{"LISTEN_SECONDS": "three"})
		if !errors.Is(err, speech_errors.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.VoskModelPath = "/models/vosk"
		return cfg
	}

	cases := map[string]func(*Config){
		"malformed grammar":        func(c *Config) { c.Grammar = `["open", ` },
		"non positive listen":      func(c *Config) { c.ListenSeconds = 0 },
		"unknown decoder":          func(c *Config) { c.Decoder = "kaldi" },
		"whisper without model":    func(c *Config) { c.Decoder = DecoderWhisper },
		"vosk without model":       func(c *Config) { c.VoskModelPath = "" },
		"file source without file": func(c *Config) { c.Source.Type = SourceFile },
		"zero chunk size":          func(c *Config) { c.Audio.ChunkSize = 0 },
		"unknown log level":        func(c *Config) { c.Logging.Level = "trace" },
		"unknown log format":       func(c *Config) { c.Logging.Format = "xml" },
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected a valid config, got %v", err)
	}

	for name, mutate := range cases {
		mutate := mutate
		t.Run("reject "+name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)

			if err := cfg.Validate(); !errors.Is(err, speech_errors.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("build json and console loggers", func(t *testing.T) {
		for _, format := range []string{"json", "console"} {
			logger, err := NewLogger(LoggingConfig{Level: "warn", Format: format})
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", format, err)
			}

			if logger.Core().Enabled(-1) {
				t.Errorf("%s: expected debug to be disabled", format)
			}
		}
	})
}
