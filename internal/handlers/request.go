package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/senyabanana/procurement-service/internal/models"
)

// Запас на JSON-поле data и заголовки частей сверх самих документов.
const formOverhead = 1 << 20

// decodeForm разбирает тело запроса: multipart с JSON в поле data и файлами
// в полях fields либо просто JSON. Отсутствующий файл возвращается как nil.
func decodeForm(w http.ResponseWriter, r *http.Request, maxDocumentSize int64, dst any, fields ...string) (map[string]*models.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(len(fields))*maxDocumentSize+formOverhead)
	docs := make(map[string]*models.Document, len(fields))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return nil, models.NewErrorResponse(models.InvalidInput, "invalid request body")
		}
		return docs, nil
	}

	if err := r.ParseMultipartForm(formOverhead); err != nil {
		return nil, models.NewErrorResponse(models.InvalidInput, "invalid multipart form")
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	if data := r.FormValue("data"); data != "" {
		if err := json.Unmarshal([]byte(data), dst); err != nil {
			return nil, models.NewErrorResponse(models.InvalidInput, "invalid data field")
		}
	}

	for _, field := range fields {
		doc, err := readDocument(r, field, maxDocumentSize)
		if err != nil {
			return nil, err
		}
		docs[field] = doc
	}
	return docs, nil
}

func readDocument(r *http.Request, field string, maxDocumentSize int64) (*models.Document, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewErrorResponse(models.InvalidInput, fmt.Sprintf("invalid %s file", field))
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxDocumentSize+1))
	if err != nil {
		return nil, models.NewInternalError("failed to read upload", err)
	}
	if int64(len(content)) > maxDocumentSize {
		return nil, models.NewErrorResponse(models.InvalidInput, fmt.Sprintf("%s exceeds %d bytes", field, maxDocumentSize))
	}
	return &models.Document{Name: header.Filename, Content: content}, nil
}
