package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
)

// ConversionError reports a codec failure while normalizing a file.
// Op is "decode" or "encode".
type ConversionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("audio: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// IsWAV reports whether path has a .wav extension, ignoring case.
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// ReplaceExt swaps the extension of path for ext (which includes the dot).
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Normalizer makes sure audio is on disk as WAV before it is uploaded.
type Normalizer struct {
	codec  Codec
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil logger discards output.
func NewNormalizer(codec Codec, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Normalizer{codec: codec, logger: logger}
}

// Normalize returns a path to a WAV rendition of inputPath.
//
// Paths that already end in .wav are returned as-is without being read.
// Anything else is decoded and re-encoded to outputPath, or to inputPath
// with its extension replaced by .wav when outputPath is empty. The input
// file is left in place.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string) (string, error) {
	if IsWAV(inputPath) {
		return inputPath, nil
	}

	if outputPath == "" {
		outputPath = ReplaceExt(inputPath, ".wav")
	}

	buf, err := n.codec.Decode(ctx, inputPath)
	if err != nil {
		n.logger.Error("error converting file", "input", inputPath, "error", err)
		return "", &ConversionError{Op: "decode", Path: inputPath, Err: err}
	}

	if err := writeAtomic(outputPath, func(w io.WriteSeeker) error {
		return n.codec.Encode(w, buf)
	}); err != nil {
		n.logger.Error("error converting file", "output", outputPath, "error", err)
		return "", &ConversionError{Op: "encode", Path: outputPath, Err: err}
	}

	n.logger.Info("converted audio", "input", inputPath, "output", outputPath)
	return outputPath, nil
}

// WriteWAV encodes buf to a WAV file at path.
func WriteWAV(path string, buf *goaudio.IntBuffer) error {
	return writeAtomic(path, func(w io.WriteSeeker) error {
		return encodeWAV(w, buf)
	})
}

// writeAtomic writes to a temp file next to dest, then renames it into
// place so a failed encode never leaves a truncated file behind.
func writeAtomic(dest string, write func(io.WriteSeeker) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving file into place: %w", err)
	}
	return nil
}
