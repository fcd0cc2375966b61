package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// UploadValidator checks uploaded file names and sizes before extraction
type UploadValidator struct {
	maxBytes        int64
	blockedPatterns []*regexp.Regexp
}

// NewUploadValidator creates a validator that rejects files above maxBytes.
// A non-positive maxBytes disables the size check.
func NewUploadValidator(maxBytes int64) *UploadValidator {
	patterns := []string{
		`\.\.`,        // parent directory traversal
		`[/\\]`,       // path separators
		`[\x00-\x1f]`, // control characters
		`^\.`,         // hidden files
		`(?i)\.(exe|bat|cmd|sh|dll|so)$`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}

	return &UploadValidator{maxBytes: maxBytes, blockedPatterns: compiled}
}

// ValidationError represents an upload validation error
type ValidationError struct {
	Message string
	Pattern string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the file name and size of an upload
func (v *UploadValidator) Validate(name string, size int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Message: "file name is required"}
	}

	if len(name) > 255 {
		return &ValidationError{Message: "file name too long"}
	}

	for _, pattern := range v.blockedPatterns {
		if pattern.MatchString(name) {
			return &ValidationError{
				Message: fmt.Sprintf("file name not allowed: %s", name),
				Pattern: pattern.String(),
			}
		}
	}

	if size == 0 {
		return &ValidationError{Message: "file is empty"}
	}

	if v.maxBytes > 0 && size > v.maxBytes {
		return &ValidationError{
			Message: fmt.Sprintf("file exceeds the %d MB upload limit", v.maxBytes>>20),
		}
	}

	return nil
}

// SanitizeFilename strips any directory component a browser may have sent
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimSpace(filepath.Base(name))
}
