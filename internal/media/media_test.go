package media

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"testing"

	"taskhub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLoggers()
	code := m.Run()
	logger.SyncLoggers()
	os.Exit(code)
}

func makeFileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	files := form.File["files"]
	require.Len(t, files, 1)
	return files[0]
}

func TestValidateImage(t *testing.T) {
	png := makeFileHeader(t, "photo.png", "image/png", []byte("png-bytes"))
	assert.NoError(t, ValidateImage(png))

	webp := makeFileHeader(t, "photo.WEBP", "image/webp", []byte("webp-bytes"))
	assert.NoError(t, ValidateImage(webp))

	pdf := makeFileHeader(t, "doc.pdf", "application/pdf", []byte("pdf-bytes"))
	assert.ErrorIs(t, ValidateImage(pdf), ErrInvalidFormat)

	// Image content type but a disallowed extension.
	svg := makeFileHeader(t, "pic.svg", "image/svg+xml", []byte("<svg/>"))
	assert.ErrorIs(t, ValidateImage(svg), ErrInvalidFormat)

	// Allowed extension but non-image content type.
	fakePNG := makeFileHeader(t, "fake.png", "text/plain", []byte("not an image"))
	assert.ErrorIs(t, ValidateImage(fakePNG), ErrInvalidFormat)
}

func TestValidateImageSizeLimit(t *testing.T) {
	big := makeFileHeader(t, "big.png", "image/png", make([]byte, MaxFileSize+1))
	err := ValidateImage(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the limit")
}

func TestKeyFromURL(t *testing.T) {
	store := &S3Store{bucket: "taskhub-media", baseURL: "http://127.0.0.1:9000"}

	key, err := store.keyFromURL("http://127.0.0.1:9000/taskhub-media/tasks/abc.png")
	require.NoError(t, err)
	assert.Equal(t, "tasks/abc.png", key)

	_, err = store.keyFromURL("http://evil.example/taskhub-media/tasks/abc.png")
	assert.Error(t, err)

	_, err = store.keyFromURL("http://127.0.0.1:9000/other-bucket/tasks/abc.png")
	assert.Error(t, err)

	_, err = store.keyFromURL("http://127.0.0.1:9000/taskhub-media/")
	assert.Error(t, err)
}
