package transcribe

import (
	"fmt"
	"os"
)

// SaveTranscript writes text to path as UTF-8, replacing any existing file.
// The text is written exactly as given.
func SaveTranscript(text, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("transcribe: saving transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("transcribe: saving transcript: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("transcribe: saving transcript: %w", err)
	}
	return nil
}
