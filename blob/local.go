package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageSize caps a single upload.
const MaxImageSize = 10 << 20

// LocalStore keeps images on disk under Root and serves them from BaseURL.
type LocalStore struct {
	Root    string
	BaseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes src to <folder>/<uuid><ext>. The extension comes from the sniffed
// content type, not from the client's filename.
func (s *LocalStore) Upload(ctx context.Context, src Source, folder string) (Image, error) {
	if src.Reader == nil {
		return Image{}, errors.New("no image provided")
	}
	data, err := io.ReadAll(io.LimitReader(src.Reader, MaxImageSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return Image{}, fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return Image{}, fmt.Errorf("%w: detected %s", ErrInvalidImage, mtype.String())
	}
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	publicID := path.Join(cleanFolder(folder), uuid.NewString()+mtype.Extension())
	dest, err := s.resolve(publicID)
	if err != nil {
		return Image{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Image{}, fmt.Errorf("failed to create image folder: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return Image{}, fmt.Errorf("failed to write image: %w", err)
	}

	return Image{URL: s.BaseURL + "/" + publicID, PublicID: publicID}, nil
}

// Delete removes a stored image. Deleting a missing image is not an error.
func (s *LocalStore) Delete(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.resolve(publicID)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

func (s *LocalStore) resolve(publicID string) (string, error) {
	clean := path.Clean("/" + publicID)
	if clean == "/" {
		return "", fmt.Errorf("invalid public id %q", publicID)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

func cleanFolder(folder string) string {
	clean := strings.Trim(path.Clean("/"+folder), "/")
	if clean == "" {
		return "misc"
	}
	return clean
}
