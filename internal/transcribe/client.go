// Package transcribe uploads WAV audio to the Sarvam speech-to-text API and
// returns, and optionally saves, the transcript.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/chaz8081/gostt-sarvam/internal/audio"
	"github.com/chaz8081/gostt-sarvam/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Normalizer turns an arbitrary audio file into a WAV file.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) (string, error)
}

// Result is the outcome of a successful Transcribe call.
type Result struct {
	Transcript     string         // text exactly as returned; may be empty
	Raw            map[string]any // full parsed response, for diagnostics
	AudioPath      string         // WAV file that was uploaded
	TranscriptPath string         // where the transcript was saved, "" if not saved
	RequestID      string         // correlation ID used in log records
}

// Empty reports whether the service answered successfully but returned no text.
func (r *Result) Empty() bool {
	return r.Transcript == ""
}

// Client talks to the speech-to-text endpoint.
type Client struct {
	apiKey       string
	endpoint     string
	languageCode string
	model        string
	httpClient   *http.Client
	normalizer   Normalizer
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient sets the HTTP client used for uploads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. Without one, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithNormalizer replaces the default WAV normalizer.
func WithNormalizer(n Normalizer) Option {
	return func(c *Client) { c.normalizer = n }
}

// WithLanguageCode sets the language_code form field.
func WithLanguageCode(code string) Option {
	return func(c *Client) { c.languageCode = code }
}

// WithModel sets the model form field.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// NewClient creates a Client for the given subscription key. An empty key
// returns a *config.ConfigurationError.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, &config.ConfigurationError{
			Key:     "api key",
			Message: "a subscription key is required to create a transcription client",
		}
	}

	c := &Client{
		apiKey:       apiKey,
		endpoint:     config.DefaultEndpoint,
		languageCode: config.DefaultLanguageCode,
		model:        config.DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: config.DefaultTimeout}
	}
	if c.normalizer == nil {
		d := config.Default().Audio
		codec := audio.NewFileCodec(d.FFmpegPath, int(d.SampleRate), int(d.Channels))
		c.normalizer = audio.NewNormalizer(codec, c.logger)
	}
	return c, nil
}

// New builds a Client from cfg, reading the subscription key from the
// environment variable named by cfg.API.KeyEnv.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	key, err := config.ResolveAPIKey(cfg.API.KeyEnv)
	if err != nil {
		return nil, err
	}

	codec := audio.NewFileCodec(cfg.Audio.FFmpegPath, int(cfg.Audio.SampleRate), int(cfg.Audio.Channels))
	return NewClient(key,
		WithEndpoint(cfg.API.Endpoint),
		WithLanguageCode(cfg.API.LanguageCode),
		WithModel(cfg.API.Model),
		WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		WithLogger(logger),
		WithNormalizer(audio.NewNormalizer(codec, logger)),
	)
}

// Transcribe converts audioPath to WAV if needed, uploads it, and returns
// the transcript. When persist is set and the transcript is non-empty it is
// written next to the WAV file with a .txt extension.
//
// A non-2xx response yields a *TranscriptionError; conversion failures yield
// an *audio.ConversionError. Nothing is retried.
func (c *Client) Transcribe(ctx context.Context, audioPath string, persist bool) (*Result, error) {
	requestID := uuid.NewString()
	log := c.logger.With("request_id", requestID)

	wavPath := audioPath
	if !audio.IsWAV(audioPath) {
		var err error
		wavPath, err = c.normalizer.Normalize(ctx, audioPath, "")
		if err != nil {
			return nil, err
		}
	}

	body, contentType, err := c.buildForm(wavPath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("transcribe: creating request: %w", err)
	}
	req.Header.Set("api-subscription-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	log.Debug("sending audio", "file", wavPath, "endpoint", c.endpoint, "language_code", c.languageCode, "model", c.model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("error transcribing file", "file", wavPath, "error", err)
		return nil, fmt.Errorf("transcribe: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transcribe: reading response: %w", err)
	}

	log.Debug("API response", "status", resp.StatusCode, "headers", resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newTranscriptionError(resp, respBody)
		log.Error("error transcribing file", "file", wavPath, "status", resp.StatusCode, "detail", apiErr.Detail)
		return nil, apiErr
	}

	log.Debug("API response content", "body", string(respBody))

	var raw map[string]any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		log.Error("error transcribing file", "file", wavPath, "error", err)
		return nil, fmt.Errorf("transcribe: parsing response: %w", err)
	}

	text, _ := raw["transcript"].(string)
	result := &Result{
		Transcript: text,
		Raw:        raw,
		AudioPath:  wavPath,
		RequestID:  requestID,
	}

	if result.Empty() {
		log.Warn("no transcription text found in API response")
		if pretty, err := json.MarshalIndent(raw, "", "  "); err == nil {
			log.Debug("full response structure", "response", string(pretty))
		}
		return result, nil
	}

	if persist {
		txtPath := audio.ReplaceExt(wavPath, ".txt")
		if err := SaveTranscript(text, txtPath); err != nil {
			log.Error("error saving text to file", "path", txtPath, "error", err)
			return nil, err
		}
		log.Info("saved transcription", "path", txtPath)
		result.TranscriptPath = txtPath
	}

	return result, nil
}

// buildForm assembles the multipart body: language_code, model, then the
// WAV file part.
func (c *Client) buildForm(wavPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: opening audio: %w", err)
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	if err := mw.WriteField("language_code", c.languageCode); err != nil {
		return nil, "", fmt.Errorf("transcribe: writing form: %w", err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return nil, "", fmt.Errorf("transcribe: writing form: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filepath.Base(wavPath))))
	h.Set("Content-Type", "audio/wav")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: writing form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("transcribe: reading audio: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("transcribe: writing form: %w", err)
	}
	return buf, mw.FormDataContentType(), nil
}

func newTranscriptionError(resp *http.Response, body []byte) *TranscriptionError {
	apiErr := &TranscriptionError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if len(body) == 0 {
		return apiErr
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Payload = payload
		if pretty, err := json.MarshalIndent(payload, "", "  "); err == nil {
			apiErr.Detail = string(pretty)
			return apiErr
		}
	}
	apiErr.Detail = string(body)
	return apiErr
}
