package httpcore

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMultipartBody(t *testing.T) (body *bytes.Buffer, boundary string) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("name", "gopher"))
	fw, err := w.CreateFormFile("avatar", "gopher.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake png bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.Boundary()
}

func TestMultipartBoundary(t *testing.T) {
	ct := []byte(`multipart/form-data; boundary=----WebKitFormBoundaryABC123`)
	boundary, ok := multipartBoundary(ct)
	require.True(t, ok)
	require.Equal(t, "----WebKitFormBoundaryABC123", boundary)
}

func TestMultipartBoundaryQuoted(t *testing.T) {
	ct := []byte(`multipart/form-data; charset=utf-8; boundary="abc-123"`)
	boundary, ok := multipartBoundary(ct)
	require.True(t, ok)
	require.Equal(t, "abc-123", boundary)
}

func TestMultipartBoundaryRejectsOtherContentType(t *testing.T) {
	_, ok := multipartBoundary([]byte("application/json"))
	require.False(t, ok)
}

func TestParseMultipartForm(t *testing.T) {
	body, boundary := buildMultipartBody(t)

	form, err := parseMultipartForm(body, boundary, 1<<20)
	require.NoError(t, err)
	defer form.RemoveAll()

	require.Equal(t, []string{"gopher"}, form.Value["name"])
	require.Len(t, form.File["avatar"], 1)

	fh := form.File["avatar"][0]
	f, err := fh.Open()
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "fake png bytes", string(data))
}

func TestSaveMultipartFile(t *testing.T) {
	dir := t.TempDir()
	path, n, err := SaveMultipartFile(dir, strings.NewReader("payload contents"))
	require.NoError(t, err)
	require.EqualValues(t, len("payload contents"), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "payload contents", string(data))
}

func TestSaveMultipartFileUniqueNames(t *testing.T) {
	dir := t.TempDir()
	path1, _, err := SaveMultipartFile(dir, strings.NewReader("a"))
	require.NoError(t, err)
	path2, _, err := SaveMultipartFile(dir, strings.NewReader("b"))
	require.NoError(t, err)
	require.NotEqual(t, path1, path2)
}
