package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Title string `json:"title"`
}

func formRequest(t *testing.T, data string, field string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("data", data))
	if field != "" {
		part, err := writer.CreateFormFile(field, "offer.zip")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestDecodeFormMultipart(t *testing.T) {
	var dst payload
	docs, err := decodeForm(httptest.NewRecorder(), formRequest(t, `{"title":"cement"}`, "bidFiles", []byte("PK")), 16, &dst, "bidFiles", "extra")
	require.NoError(t, err)
	assert.Equal(t, "cement", dst.Title)
	require.NotNil(t, docs["bidFiles"])
	assert.Equal(t, "offer.zip", docs["bidFiles"].Name)
	assert.Equal(t, []byte("PK"), docs["bidFiles"].Content)
	assert.Nil(t, docs["extra"])
}

func TestDecodeFormRejectsOversizedDocument(t *testing.T) {
	var dst payload
	_, err := decodeForm(httptest.NewRecorder(), formRequest(t, `{}`, "bidFiles", bytes.Repeat([]byte("x"), 17)), 16, &dst, "bidFiles")
	assert.Equal(t, models.InvalidInput, models.KindOf(err))
}

func TestDecodeFormRejectsBadData(t *testing.T) {
	var dst payload
	_, err := decodeForm(httptest.NewRecorder(), formRequest(t, `{"title":`, "", nil), 16, &dst)
	assert.Equal(t, models.InvalidInput, models.KindOf(err))
}

func TestDecodeFormJSON(t *testing.T) {
	var dst payload
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"title":"steel"}`))
	req.Header.Set("Content-Type", "application/json")
	docs, err := decodeForm(httptest.NewRecorder(), req, 16, &dst, "bidFiles")
	require.NoError(t, err)
	assert.Equal(t, "steel", dst.Title)
	assert.Empty(t, docs)

	req = httptest.NewRequest(http.MethodPatch, "/", http.NoBody)
	_, err = decodeForm(httptest.NewRecorder(), req, 16, &dst)
	assert.NoError(t, err)
}
