package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotctl/depotctl/internal/pkg/errs"
)

func TestLoadURIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obj")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	f := New()
	data, err := f.LoadURI(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLoadURIFileMissing(t *testing.T) {
	f := New()
	_, err := f.LoadURI(context.Background(), "file://"+filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestLoadURIUnsupportedScheme(t *testing.T) {
	f := New()
	_, err := f.LoadURI(context.Background(), "ftp://example.com/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.Unsupported)
}

func TestLoadURIHTTPNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New()
	_, err := f.LoadURI(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestLoadURIHTTPOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New()
	data, err := f.LoadURI(context.Background(), srv.URL+"/obj")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRemoteObjectURL(t *testing.T) {
	checksum := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	u, err := RemoteObjectURL("https://example.com/repo/", checksum, Commit)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/repo/objects/01/23456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef.commit", u)
}

func TestRemoteObjectURLBadChecksum(t *testing.T) {
	_, err := RemoteObjectURL("https://example.com/repo", "short", Commit)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ParseError)
}
