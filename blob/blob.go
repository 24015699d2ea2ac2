// Package blob stores uploaded images and hands back stable public URLs.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidImage is returned when the uploaded content is not an image.
var ErrInvalidImage = errors.New("invalid image file")

// Source is a local file handle offered for upload.
type Source struct {
	Filename string
	Reader   io.Reader
}

// Image identifies a stored upload.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Store uploads and deletes images.
type Store interface {
	Upload(ctx context.Context, src Source, folder string) (Image, error)
	Delete(ctx context.Context, publicID string) error
}
