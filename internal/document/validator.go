package document

import (
	"errors"
	"fmt"
	"strings"
)

// Error definitions
var (
	ErrEmptyFile           = errors.New("file is empty")
	ErrUnsupportedFileType = errors.New("only PDF files are supported")
	ErrFileTooLarge        = errors.New("file size exceeds maximum allowed size")
)

// ContentTypePDF is the accepted media type for uploads
const ContentTypePDF = "application/pdf"

// DefaultMaxSizeBytes is the default upload limit (10 MiB)
const DefaultMaxSizeBytes int64 = 10 * 1024 * 1024

// Limits configures upload validation
type Limits struct {
	MaxSizeBytes      int64
	AcceptedExtension string
	AcceptedMediaType string
}

// DefaultLimits returns the default upload limits
func DefaultLimits() Limits {
	return Limits{
		MaxSizeBytes:      DefaultMaxSizeBytes,
		AcceptedExtension: ".pdf",
		AcceptedMediaType: ContentTypePDF,
	}
}

// Validate checks that an upload is plausibly a PDF within the size limit.
// Either the declared media type or the file extension is enough to accept the type.
func Validate(data []byte, mediaType, fileName string, limits Limits) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}

	if !limits.acceptsMediaType(mediaType) && !limits.acceptsFileName(fileName) {
		return fmt.Errorf("%w: got media type %q and file name %q", ErrUnsupportedFileType, mediaType, fileName)
	}

	if int64(len(data)) > limits.MaxSizeBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrFileTooLarge, len(data), limits.MaxSizeBytes)
	}

	return nil
}

func (l Limits) acceptsMediaType(mediaType string) bool {
	if mediaType == "" {
		return false
	}
	// drop parameters such as "; charset=binary"
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.EqualFold(strings.TrimSpace(mediaType), l.AcceptedMediaType)
}

func (l Limits) acceptsFileName(fileName string) bool {
	if l.AcceptedExtension == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(fileName), strings.ToLower(l.AcceptedExtension))
}
