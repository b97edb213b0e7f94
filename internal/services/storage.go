package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const jobDescriptionPrefix = "jd"

var pdfSignature = []byte("%PDF-")

// StoredUpload is a job description PDF staged on disk until it has been parsed.
type StoredUpload struct {
	Name string
	Path string
	Size int64
}

// UploadStore stages uploaded job descriptions for the PDF parser. Files live only for the
// duration of one request.
type UploadStore interface {
	SaveJobDescription(file *multipart.FileHeader) (*StoredUpload, error)
	Remove(name string) error
	EnsureDir() error
}

type uploadStore struct {
	dir      string
	maxBytes int64
}

func NewUploadStore(dir string, maxBytes int64) UploadStore {
	return &uploadStore{dir: dir, maxBytes: maxBytes}
}

func (s *uploadStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create job description upload directory: %w", err)
	}
	return nil
}

// SaveJobDescription checks the extension, size and PDF signature, then writes the upload
// under a random name. Rejections wrap ErrUnsupportedUpload or ErrUploadTooLarge.
func (s *uploadStore) SaveJobDescription(file *multipart.FileHeader) (*StoredUpload, error) {
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".pdf" {
		return nil, fmt.Errorf("%w: got %q", ErrUnsupportedUpload, file.Filename)
	}
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrUploadTooLarge, file.Size, s.maxBytes)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open job description upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, len(pdfSignature))
	n, _ := io.ReadFull(src, head)
	if !bytes.Equal(head[:n], pdfSignature) {
		return nil, fmt.Errorf("%w: %q has no PDF header", ErrUnsupportedUpload, file.Filename)
	}

	name := fmt.Sprintf("%s_%s.pdf", jobDescriptionPrefix, uuid.New().String())
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stage job description: %w", err)
	}

	written, err := io.Copy(dst, io.MultiReader(bytes.NewReader(head[:n]), src))
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to stage job description: %w", err)
	}

	return &StoredUpload{Name: name, Path: path, Size: written}, nil
}

// Remove deletes a staged upload. Only the base name is used, so callers cannot reach
// outside the upload directory.
func (s *uploadStore) Remove(name string) error {
	if err := os.Remove(filepath.Join(s.dir, filepath.Base(name))); err != nil {
		return fmt.Errorf("failed to remove staged job description: %w", err)
	}
	return nil
}
