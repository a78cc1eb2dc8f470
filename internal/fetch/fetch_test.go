package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
)

// Minimal valid PNG: signature plus truncated body is enough for sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF")

func serve(t *testing.T, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPNG(t *testing.T) {
	srv := serve(t, http.StatusOK, pngBytes)
	f := NewHTTPFetcher(Config{TmpDir: t.TempDir()}, nil)
	jobID := uuid.New()

	res, err := f.Fetch(context.Background(), srv.URL, jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.PNG, res.Format)
	assert.Equal(t, int64(len(pngBytes)), res.Size)
	assert.Contains(t, res.Path, jobID.String()+".png")

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestFetchPDF(t *testing.T) {
	srv := serve(t, http.StatusOK, pdfBytes)
	f := NewHTTPFetcher(Config{TmpDir: t.TempDir()}, nil)

	res, err := f.Fetch(context.Background(), srv.URL, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, constants.PDF, res.Format)
}

func TestFetchUnsupportedContent(t *testing.T) {
	srv := serve(t, http.StatusOK, []byte("<html><body>not a bill</body></html>"))
	f := NewHTTPFetcher(Config{TmpDir: t.TempDir()}, nil)

	_, err := f.Fetch(context.Background(), srv.URL, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFetch)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestFetchUpstreamError(t *testing.T) {
	srv := serve(t, http.StatusNotFound, nil)
	f := NewHTTPFetcher(Config{TmpDir: t.TempDir()}, nil)

	_, err := f.Fetch(context.Background(), srv.URL, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFetch)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchSizeLimit(t *testing.T) {
	big := append(append([]byte{}, pngBytes...), make([]byte, 100)...)
	srv := serve(t, http.StatusOK, big)
	f := NewHTTPFetcher(Config{TmpDir: t.TempDir(), MaxBytes: 64}, nil)

	_, err := f.Fetch(context.Background(), srv.URL, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFetch)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetchBadURL(t *testing.T) {
	f := NewHTTPFetcher(Config{TmpDir: t.TempDir()}, nil)

	_, err := f.Fetch(context.Background(), "http://127.0.0.1:0/nope", uuid.New())
	assert.ErrorIs(t, err, common.ErrFetch)
}
