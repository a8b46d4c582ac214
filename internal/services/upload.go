package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/tehshkola/apiserver/internal/storage"
)

const maxUploadBytes = 5 << 20

var allowedImageExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
	"svg":  true,
}

var (
	ErrUploadTooLarge     = errors.New("upload exceeds size limit")
	ErrUploadNotImage     = errors.New("upload is not an image")
	ErrUploadBadExtension = errors.New("upload has a disallowed extension")
)

// UploadService stores commission-uploaded product and event images in
// object storage and hands back their public URL.
type UploadService struct {
	storage       *storage.Storage
	publicBaseURL string
}

func NewUploadService(store *storage.Storage, publicBaseURL string) *UploadService {
	return &UploadService{
		storage:       store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// SaveImage validates and stores one image, returning its public URL.
// Only image/* content up to 5 MiB with an allow-listed extension is
// accepted; the stored key is random, never the client's file name.
func (s *UploadService) SaveImage(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if size > maxUploadBytes {
		return "", ErrUploadTooLarge
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrUploadNotImage
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "png"
	}
	if !allowedImageExts[ext] {
		return "", ErrUploadBadExtension
	}

	key, err := randomKey(ext)
	if err != nil {
		return "", err
	}

	// LimitReader backstops a lying Content-Length.
	if err := s.storage.Put(ctx, key, io.LimitReader(r, maxUploadBytes), size, contentType); err != nil {
		return "", err
	}

	return s.publicBaseURL + "/" + key, nil
}

func randomKey(ext string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf) + "." + ext, nil
}
