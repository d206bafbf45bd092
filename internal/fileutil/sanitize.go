package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxFilenameLength = 120

// SanitizeFilename rewrites a name so it is safe to use as a single path
// element on common filesystems. Path separators, control characters, and
// characters rejected by Windows shares are replaced with underscores.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "document"
	}

	var builder strings.Builder
	builder.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			builder.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			builder.WriteByte('_')
		default:
			builder.WriteRune(r)
		}
	}

	cleaned := strings.Trim(builder.String(), " .")
	if cleaned == "" {
		return "document"
	}
	if len(cleaned) > maxFilenameLength {
		ext := filepath.Ext(cleaned)
		if len(ext) < maxFilenameLength {
			cleaned = cleaned[:maxFilenameLength-len(ext)] + ext
		} else {
			cleaned = cleaned[:maxFilenameLength]
		}
	}
	return cleaned
}

// Stem returns the filename without directory or extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WriteStaged writes payload bytes to a uniquely named file in dir. The
// pattern follows os.CreateTemp semantics ("mailroom-*" style).
func WriteStaged(dir, pattern string, payload []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := file.Write(payload); err != nil {
		file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return file.Name(), nil
}
