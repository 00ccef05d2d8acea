// Package media talks to the external binary-object host that serves task
// attachments and profile photos. Uploads return a stable public URL;
// deletion is keyed by the object key extracted back out of that URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// Store is the media-host client injected into the handlers. Production uses
// the S3 implementation; tests substitute a recording fake.
type Store interface {
	Upload(ctx context.Context, data []byte, filename, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}

// MaxFileSize caps a single upload at 10 MiB.
const MaxFileSize = 10 << 20

var ErrInvalidFormat = errors.New("invalid file format: only JPG, JPEG, PNG, GIF, WebP images are allowed")

var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ValidateImage checks extension, declared content type and size before a
// byte of the file is sent anywhere.
func ValidateImage(file *multipart.FileHeader) error {
	if file.Size > MaxFileSize {
		return fmt.Errorf("file %s exceeds the limit of 10MB", file.Filename)
	}
	if !allowedExts[strings.ToLower(filepath.Ext(file.Filename))] {
		return ErrInvalidFormat
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return ErrInvalidFormat
	}
	return nil
}
