// Package storage is the object store for product images. Files live on
// local disk under Root and are served at BaseURL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"storefront/internal/logging"
	"storefront/internal/metrics"
)

const maxImageSize = 5 << 20

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

var ErrOutsideRoot = errors.New("path outside upload root")

// InvalidImageError reports a file rejected before anything was written.
type InvalidImageError struct {
	Filename string
	Reason   string
}

func (e InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image %q: %s", e.Filename, e.Reason)
}

type LocalStore struct {
	Root    string
	BaseURL string
}

func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{
		Root:    filepath.Clean(root),
		BaseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Save validates and writes one image, returning its public URL.
func (s *LocalStore) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if err := validateImage(file); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	extension := strings.ToLower(filepath.Ext(file.Filename))
	name := primitive.NewObjectID().Hex() + extension
	dir := filepath.Join(s.Root, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	fullPath := filepath.Join(dir, name)
	out, err := os.Create(fullPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(fullPath)
		return "", err
	}

	logging.Component("storage").WithField("file", name).Debug("image saved")
	return s.BaseURL + "/products/" + name, nil
}

// SaveAll uploads files concurrently. Every successful URL is returned in
// input order even when some uploads fail; err is the first failure.
// Failed uploads are not retried.
func (s *LocalStore) SaveAll(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, len(files))
	var mu sync.Mutex

	var g errgroup.Group
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			url, err := s.Save(ctx, file)
			metrics.ImageUploaded(err)
			if err != nil {
				logging.Component("storage").WithError(err).WithField("file", file.Filename).Warn("image upload failed")
				return err
			}
			mu.Lock()
			urls[i] = url
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	saved := make([]string, 0, len(files))
	for _, url := range urls {
		if url != "" {
			saved = append(saved, url)
		}
	}
	return saved, err
}

// Delete removes the object behind a URL previously returned by Save.
// URLs that do not belong to this store are ignored.
func (s *LocalStore) Delete(url string) error {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" || !strings.HasPrefix(trimmed, s.BaseURL+"/") {
		return nil
	}

	rel := strings.TrimPrefix(trimmed, s.BaseURL+"/")
	cleanRel := strings.TrimPrefix(path.Clean("/"+rel), "/")
	target := filepath.Clean(filepath.Join(s.Root, filepath.FromSlash(cleanRel)))
	if target == s.Root || !strings.HasPrefix(target, s.Root+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, url)
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteAll removes every URL and logs failures.
func (s *LocalStore) DeleteAll(urls []string) {
	for _, url := range urls {
		if err := s.Delete(url); err != nil {
			logging.Component("storage").WithError(err).WithField("url", url).Warn("image delete failed")
		}
	}
}

func validateImage(file *multipart.FileHeader) error {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return InvalidImageError{Filename: file.Filename, Reason: "file extension is required"}
	}
	if _, ok := allowedExtensions[extension]; !ok {
		return InvalidImageError{Filename: file.Filename, Reason: "unsupported type " + extension}
	}
	if file.Size > maxImageSize {
		return InvalidImageError{Filename: file.Filename, Reason: "file too large (max 5MB)"}
	}
	return nil
}
