package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chaz8081/gostt-sarvam/internal/audio"
	"github.com/chaz8081/gostt-sarvam/internal/config"
	"github.com/chaz8081/gostt-sarvam/internal/transcribe"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-sarvam/config.yaml)")
	noPersist := flag.Bool("no-persist", false, "do not save the transcript next to the audio file")
	record := flag.Duration("record", 0, "record from the microphone for this long into <input_file> (.wav) first")
	reference := flag.String("reference", "", "reference transcript file to score the result against")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input_file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			log.Printf("Config already exists at %s", config.DefaultConfigPath())
		} else {
			log.Printf("Wrote default config to %s", path)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *configPath, !*noPersist, *record, *reference); err != nil {
		var cfgErr *config.ConfigurationError
		var convErr *audio.ConversionError
		var apiErr *transcribe.TranscriptionError
		switch {
		case errors.As(err, &cfgErr):
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		case errors.As(err, &convErr):
			fmt.Fprintf(os.Stderr, "Error converting file: %v\n", err)
		case errors.As(err, &apiErr):
			fmt.Fprintf(os.Stderr, "Error transcribing file: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(input, configPath string, persist bool, record time.Duration, reference string) error {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))

	// Resolve the credential before touching the microphone or network.
	client, err := transcribe.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if record > 0 {
		if err := recordTo(ctx, cfg, input, record); err != nil {
			return err
		}
	}

	printBanner(cfg, input)

	start := time.Now()
	res, err := client.Transcribe(ctx, input, persist && cfg.Persist)
	if err != nil {
		return err
	}
	log.Printf("Transcribed in %s", time.Since(start).Round(time.Millisecond))

	if res.Empty() {
		log.Println("No transcription text returned by the service")
	}
	if res.TranscriptPath != "" {
		fmt.Printf("Transcription saved to: %s\n", res.TranscriptPath)
	}
	fmt.Printf("Transcribed text: %s\n", res.Transcript)

	if reference != "" {
		want, err := os.ReadFile(reference)
		if err != nil {
			return fmt.Errorf("reading reference: %w", err)
		}
		s := transcribe.ComputeWER(string(want), res.Transcript)
		fmt.Printf("WER: %.1f%% (%d sub, %d ins, %d del over %d words)\n",
			s.WER*100, s.Substitutions, s.Insertions, s.Deletions, s.RefWords)
	}

	return nil
}

// recordTo captures microphone audio for d and writes it to path as WAV.
func recordTo(ctx context.Context, cfg *config.Config, path string, d time.Duration) error {
	if !audio.IsWAV(path) {
		return fmt.Errorf("record: output %q must have a .wav extension", path)
	}

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("record: opening microphone (is access granted for this terminal?): %w", err)
	}
	defer recorder.Close()

	log.Printf("Recording for %s...", d)
	buf, err := recorder.Record(ctx, d)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	if err := audio.WriteWAV(path, buf); err != nil {
		return fmt.Errorf("record: writing %s: %w", path, err)
	}
	log.Printf("Captured %.1fs of audio to %s",
		float64(len(buf.Data))/float64(cfg.Audio.SampleRate*cfg.Audio.Channels), path)
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	return config.Default(), nil
}

// printBanner displays the request summary.
func printBanner(cfg *config.Config, input string) {
	fmt.Println("=== gostt-sarvam ===")
	fmt.Printf("  Input:    %s\n", input)
	fmt.Printf("  Endpoint: %s\n", cfg.API.Endpoint)
	fmt.Printf("  Language: %s\n", cfg.API.LanguageCode)
	fmt.Printf("  Model:    %s\n", cfg.API.Model)
	fmt.Println("====================")
}
