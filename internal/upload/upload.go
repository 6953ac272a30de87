package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/smartys-dev/chatdesk/internal/common"
	"github.com/smartys-dev/chatdesk/internal/storage"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds the 20MB size limit")
	ErrUnsupportedType = errors.New("file type not supported")
)

const MaxFileSize = 20 << 20 // 20 MiB

// Mirrors the dashboard's accept list: common images, PDF, Word/Excel, text.
var allowedTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"text/plain": true,
}

func Validate(size int64, contentType string) error {
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	// strip parameters like "; charset=utf-8"
	ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if !allowedTypes[ct] {
		return ErrUnsupportedType
	}
	return nil
}

var (
	invalidChars  = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	repeatedScore = regexp.MustCompile(`_+`)
)

// SanitizeName strips characters outside [A-Za-z0-9.-], collapses runs of
// the replacement underscore, and trims it from both ends.
func SanitizeName(name string) string {
	s := invalidChars.ReplaceAllString(name, "_")
	s = repeatedScore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "file"
	}
	return s
}

type Service struct {
	store storage.Storage
}

func NewService(store storage.Storage) *Service {
	return &Service{store: store}
}

// Upload validates the file, stores it under a collision-safe key and
// returns the public URL. Each call is independent; one failing upload
// never affects another.
func (s *Service) Upload(ctx context.Context, name string, size int64, contentType string, r io.Reader) (string, error) {
	if err := Validate(size, contentType); err != nil {
		return "", err
	}

	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s-%s", id, SanitizeName(name))

	url, err := s.store.Put(ctx, key, io.LimitReader(r, MaxFileSize), contentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return url, nil
}
