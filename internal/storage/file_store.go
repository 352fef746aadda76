// Package storage сохраняет документы запросов и предложений в файловой системе.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var allowedExtensions = map[models.DocumentCategory][]string{
	models.RFQDocument: {".jpg", ".jpeg", ".png", ".pdf", ".docx", ".doc", ".xlsx", ".xls"},
	models.BidDocument: {".zip"},
}

var filePrefix = map[models.DocumentCategory]string{
	models.RFQDocument: "rfqFiles",
	models.BidDocument: "bidFiles",
}

// FileStore хранит документы в afero.Fs; ссылка на документ - путь от корня хранилища.
type FileStore struct {
	Fs      afero.Fs
	MaxSize int64
	logger  *zap.Logger
}

// NewFileStore создает хранилище поверх fs.
func NewFileStore(fs afero.Fs, maxSize int64, logger *zap.Logger) *FileStore {
	return &FileStore{
		Fs:      fs,
		MaxSize: maxSize,
		logger:  logger.With(zap.String("service", "storage")),
	}
}

// Store проверяет документ и сохраняет его в /<category>/<ownerId>/<prefix>-<hex><ext>.
func (s *FileStore) Store(ctx context.Context, doc models.Document, category models.DocumentCategory, ownerId string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", models.NewInternalError("document upload cancelled", err)
	}
	if len(doc.Content) == 0 {
		return "", models.NewErrorResponse(models.InvalidInput, "document is required")
	}
	if int64(len(doc.Content)) > s.MaxSize {
		return "", models.NewErrorResponse(models.InvalidInput,
			fmt.Sprintf("document %s exceeds %d bytes", doc.Name, s.MaxSize))
	}
	if ownerId == "" || strings.ContainsAny(ownerId, `/\`) || ownerId == ".." {
		return "", models.NewErrorResponse(models.InvalidInput, "invalid document owner")
	}

	ext := strings.ToLower(path.Ext(doc.Name))
	allowed, ok := allowedExtensions[category]
	if !ok {
		return "", models.NewErrorResponse(models.InvalidInput, "unknown document category")
	}
	if !slices.Contains(allowed, ext) {
		return "", models.NewErrorResponse(models.InvalidInput,
			fmt.Sprintf("document %s must be one of %s", doc.Name, strings.Join(allowed, ", ")))
	}

	dir := path.Join("/", string(category), ownerId)
	if err := s.Fs.MkdirAll(dir, 0o755); err != nil {
		return "", models.NewInternalError("failed to prepare document directory", err)
	}
	ref := path.Join(dir, filePrefix[category]+"-"+uuid.NewString()[:8]+ext)
	if err := afero.WriteFile(s.Fs, ref, doc.Content, 0o644); err != nil {
		return "", models.NewInternalError("failed to store document", err)
	}
	return ref, nil
}

// Fetch возвращает содержимое документа.
func (s *FileStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	name, err := clean(ref)
	if err != nil {
		return nil, err
	}
	content, err := afero.ReadFile(s.Fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NewErrorResponse(models.NotFound, "document not found")
		}
		return nil, models.NewInternalError("failed to read document", err)
	}
	return content, nil
}

// Delete удаляет документ; отсутствующий документ не считается ошибкой.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	name, err := clean(ref)
	if err != nil {
		return err
	}
	if err := s.Fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return models.NewInternalError("failed to delete document", err)
	}
	s.logger.Debug("document deleted", zap.String("ref", name))
	return nil
}

func clean(ref string) (string, error) {
	if ref == "" || strings.Contains(ref, "..") {
		return "", models.NewErrorResponse(models.InvalidInput, "invalid document reference")
	}
	return path.Clean("/" + ref), nil
}
