// Package validation provides centralized input validation.
//
// Inputs are checked before any remote call so that malformed names fail
// fast with an InvalidInput error instead of a store-specific transport fault.
package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/blobstore/errors"
)

const (
	minContainerLen = 3
	maxContainerLen = 63
	maxKeyLen       = 1024
	maxMetaKeyLen   = 128
	maxMetaValueLen = 2048
)

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9!#$&^_.+\-]*/[a-zA-Z0-9][a-zA-Z0-9!#$&^_.+\-]*(\s*;.*)?$`)

// ValidateContainerName validates that a container name is DNS-compliant:
// 3 to 63 lowercase letters, digits, dots and hyphens, starting and ending
// with a letter or digit, without adjacent dots or hyphens.
func ValidateContainerName(container string) error {
	invalid := func(msg string) error {
		return errors.NewContainerError(errors.KindInvalidInput, "validateContainerName", container, errors.ErrInvalidInput).
			WithMessage(msg)
	}

	if container == "" {
		return invalid("container name cannot be empty")
	}
	if len(container) < minContainerLen || len(container) > maxContainerLen {
		return invalid("container name must be between 3 and 63 characters long")
	}
	for _, char := range container {
		if !isValidContainerChar(char) {
			return invalid("container name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}
	if !isAlnum(container[0]) || !isAlnum(container[len(container)-1]) {
		return invalid("container name must start and end with a letter or number")
	}
	if strings.Contains(container, "..") || strings.Contains(container, "--") ||
		strings.Contains(container, ".-") || strings.Contains(container, "-.") {
		return invalid("container name cannot contain adjacent periods or hyphens")
	}

	return nil
}

// ValidateObjectKey validates that an object key is non-empty, fits the
// store's key length and contains no control characters. Keys are opaque:
// "/" and ".." have no path meaning to the store.
func ValidateObjectKey(key string) error {
	invalid := func(msg string) error {
		return errors.New(errors.KindInvalidInput, "validateObjectKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage(msg)
	}

	if key == "" {
		return invalid("object key cannot be empty")
	}
	if len(key) > maxKeyLen {
		return invalid("object key cannot exceed 1024 bytes")
	}
	if hasControlCharacters(key) {
		return invalid("object key cannot contain control characters")
	}

	return nil
}

// ValidateMetadata validates user metadata keys and values.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if key == "" {
			return errors.New(errors.KindInvalidInput, "validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata key cannot be empty")
		}
		if len(key) > maxMetaKeyLen {
			return errors.New(errors.KindInvalidInput, "validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata key cannot exceed 128 characters")
		}
		for _, char := range key {
			if char <= ' ' || char > '~' {
				return errors.New(errors.KindInvalidInput, "validateMetadata", errors.ErrInvalidInput).
					WithMessage("metadata key can only contain printable ASCII characters without spaces")
			}
		}
		if len(value) > maxMetaValueLen {
			return errors.New(errors.KindInvalidInput, "validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata value cannot exceed 2048 characters")
		}
		if hasControlCharacters(value) {
			return errors.New(errors.KindInvalidInput, "validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata value cannot contain control characters")
		}
	}

	return nil
}

// ValidateContentType validates that a content type is a MIME type.
// An empty content type is allowed.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !mimePattern.MatchString(contentType) {
		return errors.New(errors.KindInvalidInput, "validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}
	return nil
}

func isValidContainerChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}

func hasControlCharacters(s string) bool {
	for _, char := range s {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}

