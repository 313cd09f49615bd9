// Command wavconvert converts an audio file to WAV.
//
//	wavconvert <input_file> [output_file]
//
// Without output_file the result is written next to the input with a .wav
// extension.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/gostt-sarvam/internal/audio"
	"github.com/chaz8081/gostt-sarvam/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-sarvam/config.yaml)")
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		fmt.Println("Usage: wavconvert [-config path] <input_file> [output_file]")
		os.Exit(1)
	}
	input := flag.Arg(0)
	output := flag.Arg(1)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	codec := audio.NewFileCodec(cfg.Audio.FFmpegPath, int(cfg.Audio.SampleRate), int(cfg.Audio.Channels))
	out, err := audio.NewNormalizer(codec, logger).Normalize(ctx, input, output)
	stop()
	if err != nil {
		fmt.Printf("Error converting file: %v\n", err)
		os.Exit(1)
	}

	if out == input {
		fmt.Printf("%s is already a WAV file\n", input)
		return
	}
	fmt.Printf("Successfully converted %s to %s\n", input, out)
}
