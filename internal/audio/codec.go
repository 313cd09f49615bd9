// Package audio converts recordings into the 16-bit PCM WAV files the
// speech-to-text service accepts, and captures new recordings from the
// microphone.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Codec decodes audio files to PCM and encodes PCM as WAV.
type Codec interface {
	// Decode reads the file at path into an integer PCM buffer.
	Decode(ctx context.Context, path string) (*goaudio.IntBuffer, error)
	// Encode writes buf to w as a WAV stream.
	Encode(w io.WriteSeeker, buf *goaudio.IntBuffer) error
}

// FileCodec picks a decoder from the file extension: MP3 is decoded
// natively, WAV through go-audio, and everything else by piping through
// ffmpeg.
type FileCodec struct {
	ffmpegPath string
	sampleRate int
	channels   int
}

// NewFileCodec returns a FileCodec. sampleRate and channels control the
// PCM layout ffmpeg is asked to produce; native decoders keep the source
// layout.
func NewFileCodec(ffmpegPath string, sampleRate, channels int) *FileCodec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FileCodec{
		ffmpegPath: ffmpegPath,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Decode implements Codec.
func (c *FileCodec) Decode(ctx context.Context, path string) (*goaudio.IntBuffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3(path)
	case ".wav", ".wave":
		return decodeWAV(path)
	default:
		return c.decodeFFmpeg(ctx, path)
	}
}

// Encode implements Codec.
func (c *FileCodec) Encode(w io.WriteSeeker, buf *goaudio.IntBuffer) error {
	return encodeWAV(w, buf)
}

func decodeMP3(path string) (*goaudio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: reading frames: %w", err)
	}

	// go-mp3 always produces 16-bit little-endian stereo.
	return pcm16ToBuffer(raw, dec.SampleRate(), 2), nil
}

func decodeWAV(path string) (*goaudio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("wav: no PCM data in %s", filepath.Base(path))
	}
	return buf, nil
}

func (c *FileCodec) decodeFFmpeg(ctx context.Context, path string) (*goaudio.IntBuffer, error) {
	bin, err := exec.LookPath(c.ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("no native decoder for %q and ffmpeg is unavailable: %w", filepath.Ext(path), err)
	}

	args := []string{
		"-nostdin", "-v", "error",
		"-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(c.channels),
		"-ar", strconv.Itoa(c.sampleRate),
		"pipe:1",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // binary comes from user config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg: no audio decoded from %s", filepath.Base(path))
	}

	return pcm16ToBuffer(stdout.Bytes(), c.sampleRate, c.channels), nil
}

// pcm16ToBuffer converts interleaved 16-bit little-endian samples.
// A trailing odd byte is dropped.
func pcm16ToBuffer(raw []byte, sampleRate, channels int) *goaudio.IntBuffer {
	data := make([]int, len(raw)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// encodeWAV writes buf as PCM WAV. Buffers without a source bit depth
// are written as 16-bit.
func encodeWAV(w io.WriteSeeker, buf *goaudio.IntBuffer) error {
	if buf == nil || buf.Format == nil {
		return fmt.Errorf("wav: missing PCM format")
	}
	if buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return fmt.Errorf("wav: invalid format %d ch @ %d Hz", buf.Format.NumChannels, buf.Format.SampleRate)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = 16
	}

	enc := wav.NewEncoder(w, buf.Format.SampleRate, depth, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: finalizing header: %w", err)
	}
	return nil
}
