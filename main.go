package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"streaming-speech-recognizer/clients/text_publisher"
	"streaming-speech-recognizer/config"
	"streaming-speech-recognizer/metrics"
	"streaming-speech-recognizer/recognizer"
	"streaming-speech-recognizer/server"
	"streaming-speech-recognizer/speech_extraction"
	"streaming-speech-recognizer/speech_extraction/mic"
	"streaming-speech-recognizer/speech_to_text"
	"streaming-speech-recognizer/speech_to_text/vosk_decoder"
	"streaming-speech-recognizer/speech_to_text/whisper_decoder"
)

func main() {
	configFlag := flag.String("config", "", "path to the YAML configuration file")
	modelFlag := flag.String("m", "", "model path, overrides the configured model of the selected decoder")
	inputFlag := flag.String("i", "", "replay a WAV file instead of listening to the microphone")
	serveFlag := flag.String("serve", "", "accept WebSocket streams on this address instead of capturing")

	flag.Parse()

	fileSys := afero.NewOsFs()

	cfg, err := config.Load(fileSys, *configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	applyFlags(cfg, *modelFlag, *inputFlag, *serveFlag)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, fileSys, logger); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	_ = logger.Sync()
}

func run(cfg *config.Config, fileSys afero.Fs, logger *zap.Logger) error {
	newDecoder, release, err := decoderFactory(cfg, fileSys)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.NewMetrics()

	logger.Info("recognizer starting",
		zap.String("decoder", cfg.Decoder),
		zap.Float64("listen_seconds", cfg.ListenSeconds),
		zap.Bool("recording", cfg.WaveOutputFilename != ""),
	)

	if cfg.Server.Address != "" {
		return serve(ctx, cfg, fileSys, newDecoder, logger, appMetrics)
	}

	return capture(ctx, cfg, fileSys, newDecoder, logger, appMetrics)
}

func applyFlags(cfg *config.Config, model, input, serve string) {
	if model != "" {
		if cfg.Decoder == config.DecoderWhisper {
			cfg.WhisperModelPath = model
		} else {
			cfg.VoskModelPath = model
		}
	}

	if input != "" {
		cfg.Source.Type = config.SourceFile
		cfg.Source.InputFile = input
	}

	if serve != "" {
		cfg.Server.Address = serve
	}
}

// decoderFactory loads the configured model once and returns a factory for
// per-stream decoders plus a function releasing the model.
func decoderFactory(cfg *config.Config, fileSys afero.Fs) (speech_to_text.Factory, func(), error) {
	grammar, err := cfg.ParsedGrammar()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Decoder {
	case config.DecoderWhisper:
		model, err := whisper_decoder.LoadModel(fileSys, cfg.WhisperModelPath)
		if err != nil {
			return nil, nil, err
		}

		factory := func() (speech_to_text.Interface, error) {
			return whisper_decoder.New(&whisper_decoder.Config{
				Model:    model,
				Grammar:  grammar,
				Language: cfg.WhisperLanguage,
			})
		}

		return factory, func() { _ = model.Close() }, nil

	default:
		model, err := vosk_decoder.LoadModel(fileSys, cfg.VoskModelPath)
		if err != nil {
			return nil, nil, err
		}

		factory := func() (speech_to_text.Interface, error) {
			return vosk_decoder.New(&vosk_decoder.Config{
				Model:      model,
				SampleRate: cfg.Audio.SampleRate,
				Grammar:    grammar,
			})
		}

		return factory, model.Close, nil
	}
}

func capture(
	ctx context.Context,
	cfg *config.Config,
	fileSys afero.Fs,
	newDecoder speech_to_text.Factory,
	logger *zap.Logger,
	appMetrics *metrics.Metrics,
) error {
	decoder, err := newDecoder()
	if err != nil {
		return err
	}

	session, err := recognizer.New(&recognizer.Config{
		Decoder:            decoder,
		SampleRate:         cfg.Audio.SampleRate,
		ChunkSize:          cfg.Audio.ChunkSize,
		ListenSeconds:      cfg.ListenSeconds,
		WaveOutputFilename: cfg.WaveOutputFilename,
		FileSys:            fileSys,
		Logger:             logger,
		Metrics:            appMetrics,
	})
	if err != nil {
		_ = decoder.Close()
		return err
	}
	defer session.Close()

	var source speech_extraction.Source
	if cfg.Source.Type == config.SourceFile {
		source, err = speech_extraction.NewFile(&speech_extraction.FileConfig{
			FileSys:    fileSys,
			Path:       cfg.Source.InputFile,
			SampleRate: cfg.Audio.SampleRate,
			ChunkSize:  cfg.Audio.ChunkSize,
		})
	} else {
		source, err = mic.New(&mic.Config{
			SampleRate: cfg.Audio.SampleRate,
			ChunkSize:  cfg.Audio.ChunkSize,
		})
	}
	if err != nil {
		return err
	}

	listenerCfg := &speech_extraction.Config{
		Source:  source,
		Session: session,
		Logger:  logger,
	}

	if cfg.PublishEndpoint != "" {
		publisher, err := text_publisher.NewClient(&text_publisher.Config{Endpoint: cfg.PublishEndpoint})
		if err != nil {
			return err
		}
		listenerCfg.Publisher = publisher
	}

	listener, err := speech_extraction.New(listenerCfg)
	if err != nil {
		return err
	}

	return listener.Listen(ctx)
}

func serve(
	ctx context.Context,
	cfg *config.Config,
	fileSys afero.Fs,
	newDecoder speech_to_text.Factory,
	logger *zap.Logger,
	appMetrics *metrics.Metrics,
) error {
	srv, err := server.New(&server.Config{
		NewDecoder:         newDecoder,
		SampleRate:         cfg.Audio.SampleRate,
		ChunkSize:          cfg.Audio.ChunkSize,
		ListenSeconds:      cfg.ListenSeconds,
		WaveOutputFilename: cfg.WaveOutputFilename,
		FileSys:            fileSys,
		Logger:             logger,
		Metrics:            appMetrics,
	})
	if err != nil {
		return err
	}

	return srv.ListenAndServe(ctx, cfg.Server.Address)
}
